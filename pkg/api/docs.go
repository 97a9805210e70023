// Package api serves a read-only view of the indexer graph.
// @title IndexGraph API
// @version 1.0
// @description Read-only status of the IndexGraph indexers and their safe heights
// @contact.name API Support
// @contact.url https://github.com/goran-ethernal/IndexGraph
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @basePath /api/v1
// @schemes http https
package api
