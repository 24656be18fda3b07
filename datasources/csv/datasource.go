package csv

import (
	"unicode/utf8"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/pkg/errors"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/config"
)

// Creator creates a table out of its data source configuration.
func Creator(dbConfig map[string]interface{}) (*Table, error) {
	path, schema, options, err := readConfig(dbConfig)
	if err != nil {
		return nil, execution.NewConfigurationError(err)
	}
	return NewTable(path, schema, options)
}

func readConfig(dbConfig map[string]interface{}) (path string, schema *arrow.Schema, options Options, err error) {
	path, err = config.GetString(dbConfig, "path")
	if err != nil {
		return "", nil, Options{}, errors.Wrap(err, "couldn't get path")
	}
	schema, err = config.GetSchema(dbConfig, "columns")
	if err != nil {
		return "", nil, Options{}, errors.Wrap(err, "couldn't get columns")
	}
	header, err := config.GetBool(dbConfig, "header", config.WithDefault(false))
	if err != nil {
		return "", nil, Options{}, errors.Wrap(err, "couldn't get header")
	}
	delimiter, err := config.GetString(dbConfig, "delimiter", config.WithDefault(","))
	if err != nil {
		return "", nil, Options{}, errors.Wrap(err, "couldn't get delimiter")
	}
	r, size := utf8.DecodeRuneInString(delimiter)
	if r == utf8.RuneError || size != len(delimiter) {
		return "", nil, Options{}, errors.Errorf("couldn't decode delimiter %s to rune", delimiter)
	}
	trailingDelimiter, err := config.GetBool(dbConfig, "trailingDelimiter", config.WithDefault(false))
	if err != nil {
		return "", nil, Options{}, errors.Wrap(err, "couldn't get trailingDelimiter")
	}
	splits, err := config.GetInt(dbConfig, "splits", config.WithDefault(1))
	if err != nil {
		return "", nil, Options{}, errors.Wrap(err, "couldn't get splits")
	}
	nullValues, err := config.GetStringList(dbConfig, "nullValues", config.WithDefault([]string(nil)))
	if err != nil {
		return "", nil, Options{}, errors.Wrap(err, "couldn't get nullValues")
	}

	return path, schema, Options{
		Delimiter:         r,
		Header:            header,
		TrailingDelimiter: trailingDelimiter,
		Splits:            splits,
		NullValues:        nullValues,
	}, nil
}
