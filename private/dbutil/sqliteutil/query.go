// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package sqliteutil

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"github.com/zeebo/errs"

	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/dbutil/dbschema"
)

type definition struct {
	name string
	sql  string
}

// QuerySchema loads the schema of the named sqlite database, e.g. "main" or an attached one.
func QuerySchema(ctx context.Context, db dbschema.Queryer, schemaName string) (*dbschema.Schema, error) {
	schema := &dbschema.Schema{}
	prefix := dbutil.QuoteIdentifier(schemaName) + "."

	tableDefinitions := make([]*definition, 0)
	indexDefinitions := make([]*definition, 0)

	// find tables and indexes
	err := func() (err error) {
		rows, err := db.QueryContext(ctx, `
			SELECT name, type, sql FROM `+prefix+`sqlite_master WHERE sql NOT NULL AND name NOT LIKE 'sqlite_%'
		`)
		if err != nil {
			return err
		}
		defer func() { err = errs.Combine(err, rows.Close()) }()

		for rows.Next() {
			var defName, defType, defSQL string
			err := rows.Scan(&defName, &defType, &defSQL)
			if err != nil {
				return err
			}
			switch defType {
			case "table":
				tableDefinitions = append(tableDefinitions, &definition{name: defName, sql: defSQL})
			case "index":
				indexDefinitions = append(indexDefinitions, &definition{name: defName, sql: defSQL})
			}
		}

		return rows.Err()
	}()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	for _, definition := range tableDefinitions {
		if err := discoverTable(ctx, db, prefix, schema, definition); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	for _, definition := range indexDefinitions {
		if err := discoverIndex(ctx, db, prefix, schema, definition); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	schema.Sort()
	return schema, nil
}

func discoverTable(ctx context.Context, db dbschema.Queryer, prefix string, schema *dbschema.Schema, definition *definition) (err error) {
	table := schema.EnsureTable(definition.name)

	err = func() (err error) {
		rows, err := db.QueryContext(ctx, `PRAGMA `+prefix+`table_info(`+dbutil.QuoteIdentifier(definition.name)+`)`)
		if err != nil {
			return err
		}
		defer func() { err = errs.Combine(err, rows.Close()) }()

		for rows.Next() {
			var defaultValue sql.NullString
			var index, name, columnType string
			var pk int
			var notNull bool
			err := rows.Scan(&index, &name, &columnType, &notNull, &defaultValue, &pk)
			if err != nil {
				return err
			}

			table.AddColumn(&dbschema.Column{
				Name:       name,
				Type:       strings.ToLower(columnType),
				IsNullable: !notNull && pk == 0,
			})
			if pk > 0 {
				table.PrimaryKey = append(table.PrimaryKey, name)
			}
		}
		return rows.Err()
	}()
	if err != nil {
		return err
	}

	for _, match := range rxUnique.FindAllStringSubmatch(definition.sql, -1) {
		var columns []string
		for _, name := range strings.Split(match[1], ",") {
			columns = append(columns, strings.TrimSpace(name))
		}
		table.Unique = append(table.Unique, columns)
	}

	rows, err := db.QueryContext(ctx, `PRAGMA `+prefix+`foreign_key_list(`+dbutil.QuoteIdentifier(definition.name)+`)`)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	for rows.Next() {
		var id, seq int
		var tableName, from, to, onUpdate, onDelete, match string
		err := rows.Scan(&id, &seq, &tableName, &from, &to, &onUpdate, &onDelete, &match)
		if err != nil {
			return err
		}

		column, found := table.FindColumn(from)
		if !found {
			continue
		}
		if onDelete == "NO ACTION" {
			onDelete = ""
		}
		if onUpdate == "NO ACTION" {
			onUpdate = ""
		}
		column.Reference = &dbschema.Reference{
			Table:    tableName,
			Column:   to,
			OnUpdate: onUpdate,
			OnDelete: onDelete,
		}
	}
	return rows.Err()
}

func discoverIndex(ctx context.Context, db dbschema.Queryer, prefix string, schema *dbschema.Schema, definition *definition) (err error) {
	index := &dbschema.Index{
		Name:   definition.name,
		Unique: rxUniqueIndex.MatchString(definition.sql),
	}
	if matches := rxIndexTable.FindStringSubmatch(definition.sql); len(matches) > 0 {
		index.Table = strings.Trim(strings.TrimSpace(matches[1]), `"`)
	}
	schema.Indexes = append(schema.Indexes, index)

	rows, err := db.QueryContext(ctx, `PRAGMA `+prefix+`index_info(`+dbutil.QuoteIdentifier(definition.name)+`)`)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	for rows.Next() {
		var name sql.NullString
		var seqno, cid int
		err := rows.Scan(&seqno, &cid, &name)
		if err != nil {
			return err
		}
		if name.Valid {
			index.Columns = append(index.Columns, name.String)
		} else if matches := rxIndexExpr.FindStringSubmatch(definition.sql); len(matches) > 0 {
			index.Columns = append(index.Columns, matches[1])
		}
	}
	return rows.Err()
}

var (
	// matches UNIQUE (a,b).
	rxUnique = regexp.MustCompile(`UNIQUE\s*\((.*?)\)`)

	// matches CREATE UNIQUE INDEX.
	rxUniqueIndex = regexp.MustCompile(`(?i)^CREATE\s+UNIQUE\s+INDEX`)

	// matches ON (a,b).
	rxIndexTable = regexp.MustCompile(`ON\s*([^(]*)\(`)

	// matches ON table(expr).
	rxIndexExpr = regexp.MustCompile(`ON\s*[^(]*\((.*)\)`)
)
