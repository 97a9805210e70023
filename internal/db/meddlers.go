package db

import (
	"database/sql"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

func init() {
	meddler.Register("hash", HashMeddler{})
	meddler.Register("address", AddressMeddler{})
	meddler.Register("bigint", BigIntMeddler{})
}

// HashMeddler stores a common.Hash as its hex string.
type HashMeddler struct{}

func (HashMeddler) PreRead(any) (any, error) {
	return new(sql.NullString), nil
}

func (HashMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *common.Hash:
		*ptr = common.Hash{}
		if ns.Valid {
			*ptr = common.HexToHash(ns.String)
		}
	case **common.Hash:
		*ptr = nil
		if ns.Valid {
			h := common.HexToHash(ns.String)
			*ptr = &h
		}
	default:
		return fmt.Errorf("expected *common.Hash or **common.Hash, got %T", fieldAddr)
	}

	return nil
}

func (HashMeddler) PreWrite(field any) (any, error) {
	switch v := field.(type) {
	case common.Hash:
		return v.Hex(), nil
	case *common.Hash:
		if v == nil {
			return nil, nil
		}
		return v.Hex(), nil
	default:
		return nil, fmt.Errorf("expected common.Hash or *common.Hash, got %T", field)
	}
}

// AddressMeddler stores a common.Address as its checksummed hex string.
type AddressMeddler struct{}

func (AddressMeddler) PreRead(any) (any, error) {
	return new(sql.NullString), nil
}

func (AddressMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *common.Address:
		*ptr = common.Address{}
		if ns.Valid {
			*ptr = common.HexToAddress(ns.String)
		}
	case **common.Address:
		*ptr = nil
		if ns.Valid {
			a := common.HexToAddress(ns.String)
			*ptr = &a
		}
	default:
		return fmt.Errorf("expected *common.Address or **common.Address, got %T", fieldAddr)
	}

	return nil
}

func (AddressMeddler) PreWrite(field any) (any, error) {
	switch v := field.(type) {
	case common.Address:
		return v.Hex(), nil
	case *common.Address:
		if v == nil {
			return nil, nil
		}
		return v.Hex(), nil
	default:
		return nil, fmt.Errorf("expected common.Address or *common.Address, got %T", field)
	}
}

// BigIntMeddler stores a *big.Int as a base 10 string so wei amounts keep full precision.
type BigIntMeddler struct{}

func (BigIntMeddler) PreRead(any) (any, error) {
	return new(sql.NullString), nil
}

func (BigIntMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(**big.Int)
	if !ok {
		return fmt.Errorf("expected **big.Int, got %T", fieldAddr)
	}

	*ptr = nil
	if !ns.Valid {
		return nil
	}

	v, ok := new(big.Int).SetString(ns.String, 10) //nolint:mnd
	if !ok {
		return fmt.Errorf("invalid big integer %q", ns.String)
	}
	*ptr = v

	return nil
}

func (BigIntMeddler) PreWrite(field any) (any, error) {
	v, ok := field.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected *big.Int, got %T", field)
	}
	if v == nil {
		return nil, nil
	}

	return v.String(), nil
}
