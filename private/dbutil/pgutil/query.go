// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package pgutil

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zeebo/errs"

	"storj.io/mdschema/private/dbutil/dbschema"
)

// QuerySchema loads the structure of the named postgres schema.
func QuerySchema(ctx context.Context, db dbschema.Queryer, schemaName string) (*dbschema.Schema, error) {
	schema := &dbschema.Schema{}

	// find tables
	err := func() (err error) {
		rows, err := db.QueryContext(ctx, `
			SELECT table_name, column_name, is_nullable, data_type
			FROM  information_schema.columns
			WHERE table_schema = $1
		`, schemaName)
		if err != nil {
			return err
		}
		defer func() { err = errs.Combine(err, rows.Close()) }()

		for rows.Next() {
			var tableName, columnName, isNullable, dataType string
			err := rows.Scan(&tableName, &columnName, &isNullable, &dataType)
			if err != nil {
				return err
			}

			table := schema.EnsureTable(tableName)
			table.AddColumn(&dbschema.Column{
				Name:       columnName,
				Type:       dataType,
				IsNullable: isNullable == "YES",
			})
		}

		return rows.Err()
	}()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	// find constraints
	err = func() (err error) {
		rows, err := db.QueryContext(ctx, `
			SELECT pg_class.relname,
				pg_constraint.conname,
				pg_constraint.contype,
				array_to_string(ARRAY_AGG(pg_attribute.attname ORDER BY u.attposition), ','),
				pg_get_constraintdef(pg_constraint.oid)
			FROM pg_constraint, UNNEST(pg_constraint.conkey) WITH ORDINALITY AS u(attnum, attposition),
				pg_class,
				pg_namespace,
				pg_attribute
			WHERE pg_namespace.nspname = $1
				AND pg_class.oid = pg_constraint.conrelid
				AND pg_namespace.oid = pg_class.relnamespace
				AND pg_attribute.attrelid = pg_class.oid
				AND pg_attribute.attnum = u.attnum
			GROUP BY pg_constraint.conname, pg_constraint.contype, pg_class.relname, pg_get_constraintdef(pg_constraint.oid)
		`, schemaName)
		if err != nil {
			return err
		}
		defer func() { err = errs.Combine(err, rows.Close()) }()

		for rows.Next() {
			var tableName, constraintName, constraintType, joinedColumns, definition string

			err := rows.Scan(&tableName, &constraintName, &constraintType, &joinedColumns, &definition)
			if err != nil {
				return err
			}
			columns := strings.Split(joinedColumns, ",")

			switch constraintType {
			case "p": // primary key
				table := schema.EnsureTable(tableName)
				table.PrimaryKey = columns
			case "f": // foreign key
				if len(columns) != 1 {
					return fmt.Errorf("expected one column, got: %q", columns)
				}

				table := schema.EnsureTable(tableName)
				column, ok := table.FindColumn(columns[0])
				if !ok {
					return fmt.Errorf("did not find column %q", columns[0])
				}

				matches := rxPostgresForeignKey.FindStringSubmatch(definition)
				if len(matches) == 0 {
					return fmt.Errorf("unable to parse constraint %q", definition)
				}

				column.Reference = &dbschema.Reference{
					Table:    matches[1],
					Column:   matches[2],
					OnUpdate: matches[3],
					OnDelete: matches[4],
				}
			case "u": // unique
				table := schema.EnsureTable(tableName)
				table.Unique = append(table.Unique, columns)
			case "c": // check constraints are not part of the snapshot
			default:
				return fmt.Errorf("unhandled constraint type %q", constraintType)
			}
		}
		return rows.Err()
	}()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	// find indexes
	err = func() (err error) {
		rows, err := db.QueryContext(ctx, `
			SELECT indexname, tablename, indexdef
			FROM pg_indexes
			WHERE schemaname = $1
		`, schemaName)
		if err != nil {
			return err
		}
		defer func() { err = errs.Combine(err, rows.Close()) }()

		for rows.Next() {
			var name, tableName, definition string
			if err := rows.Scan(&name, &tableName, &definition); err != nil {
				return err
			}

			matches := rxIndexColumns.FindStringSubmatch(definition)
			if len(matches) == 0 {
				return fmt.Errorf("unable to parse index %q", definition)
			}

			var columns []string
			for _, column := range strings.Split(matches[1], ",") {
				columns = append(columns, strings.TrimSpace(column))
			}

			schema.Indexes = append(schema.Indexes, &dbschema.Index{
				Name:    name,
				Table:   tableName,
				Columns: columns,
				Unique:  strings.HasPrefix(definition, "CREATE UNIQUE"),
			})
		}
		return rows.Err()
	}()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	schema.Sort()
	return schema, nil
}

// matches FOREIGN KEY (project_id) REFERENCES projects(id) ON UPDATE CASCADE ON DELETE CASCADE.
var rxPostgresForeignKey = regexp.MustCompile(
	`^FOREIGN KEY \([[:word:]]+\) ` +
		`REFERENCES ([[:word:].]+)\(([[:word:]]+)\)` +
		`(?:\s*ON UPDATE (CASCADE|RESTRICT|SET NULL|SET DEFAULT|NO ACTION))?` +
		`(?:\s*ON DELETE (CASCADE|RESTRICT|SET NULL|SET DEFAULT|NO ACTION))?$`,
)

// matches CREATE INDEX name ON schema.table USING btree (a, b).
var rxIndexColumns = regexp.MustCompile(`USING [[:word:]]+ \((.*)\)`)
