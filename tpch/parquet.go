package tpch

import (
	"os"

	"github.com/pkg/errors"
	"github.com/segmentio/parquet-go"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

type parquetPart struct {
	PartKey     int64   `parquet:"p_partkey"`
	Name        string  `parquet:"p_name"`
	Mfgr        string  `parquet:"p_mfgr"`
	Brand       string  `parquet:"p_brand"`
	Type        string  `parquet:"p_type"`
	Size        int64   `parquet:"p_size"`
	Container   string  `parquet:"p_container"`
	RetailPrice float64 `parquet:"p_retailprice"`
	Comment     string  `parquet:"p_comment"`
}

type parquetPartSupp struct {
	PartKey    int64   `parquet:"ps_partkey"`
	SuppKey    int64   `parquet:"ps_suppkey"`
	AvailQty   int64   `parquet:"ps_availqty"`
	SupplyCost float64 `parquet:"ps_supplycost"`
	Comment    string  `parquet:"ps_comment"`
}

type parquetSupplier struct {
	SuppKey   int64   `parquet:"s_suppkey"`
	Name      string  `parquet:"s_name"`
	Address   string  `parquet:"s_address"`
	NationKey int64   `parquet:"s_nationkey"`
	Phone     string  `parquet:"s_phone"`
	AcctBal   float64 `parquet:"s_acctbal"`
	Comment   string  `parquet:"s_comment"`
}

// parquetRow converts a row of the given table into its parquet struct.
func parquetRow(table string, row []helpers.Value) (interface{}, error) {
	switch table {
	case PartTable:
		return &parquetPart{
			PartKey:     row[0].Int,
			Name:        row[1].Str,
			Mfgr:        row[2].Str,
			Brand:       row[3].Str,
			Type:        row[4].Str,
			Size:        row[5].Int,
			Container:   row[6].Str,
			RetailPrice: row[7].Float,
			Comment:     row[8].Str,
		}, nil
	case PartSuppTable:
		return &parquetPartSupp{
			PartKey:    row[0].Int,
			SuppKey:    row[1].Int,
			AvailQty:   row[2].Int,
			SupplyCost: row[3].Float,
			Comment:    row[4].Str,
		}, nil
	case SupplierTable:
		return &parquetSupplier{
			SuppKey:   row[0].Int,
			Name:      row[1].Str,
			Address:   row[2].Str,
			NationKey: row[3].Int,
			Phone:     row[4].Str,
			AcctBal:   row[5].Float,
			Comment:   row[6].Str,
		}, nil
	}
	return nil, errors.Errorf("unknown table %s", table)
}

func writeParquet(path, table string, rows [][]helpers.Value) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "couldn't create file")
	}
	defer f.Close()

	w := parquet.NewWriter(f)
	for _, row := range rows {
		out, err := parquetRow(table, row)
		if err != nil {
			return err
		}
		if err := w.Write(out); err != nil {
			return errors.Wrap(err, "couldn't write row")
		}
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "couldn't close parquet writer")
	}
	return f.Close()
}
