package dbservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dbmcp/dbmcp/internal/registry"
	"github.com/dbmcp/dbmcp/internal/sanitize"
)

const (
	uriInfo           = "database://info"
	uriDataDictionary = "database://data-dictionary"
	tablePrefix       = "database://table/"
	schemaPrefix      = "database://schema/"
)

// ListResources returns the fixed info/data-dictionary entries
// followed by one entry per visible table/view and one per non-empty
// schema, in that order. Table and schema entries are lazy (nil
// content); info and data-dictionary are prepopulated.
func (s *Service) ListResources(ctx context.Context) ([]DatabaseResource, error) {
	lease, err := s.pool.Acquire(ctx, "ListResources")
	if err != nil {
		return nil, fmt.Errorf("dbservice: acquire connection: %w", err)
	}
	defer lease.Release()

	info, err := s.renderInfo(ctx, lease.Conn)
	if err != nil {
		return nil, err
	}
	dict, err := s.renderDataDictionary(ctx, lease.Conn)
	if err != nil {
		return nil, err
	}

	out := []DatabaseResource{
		{URI: uriInfo, Name: "Database Info", Description: "Product, version, and capability summary", MimeType: "text/plain", Content: &info},
		{URI: uriDataDictionary, Name: "Data Dictionary", Description: "Schema overview and query guidance", MimeType: "text/plain", Content: &dict},
	}

	tables, err := s.listTablesAndViews(ctx, lease.Conn)
	if err != nil {
		return nil, fmt.Errorf("dbservice: list tables: %w", err)
	}
	for _, t := range tables {
		out = append(out, DatabaseResource{
			URI:         tablePrefix + t.Name,
			Name:        t.Name,
			Description: "Table metadata for " + t.Name,
			MimeType:    "text/plain",
		})
	}

	schemas, err := s.listSchemas(ctx, lease.Conn)
	if err != nil {
		slog.Debug("dbservice: schema enumeration unsupported or failed", "error", err)
	} else {
		for _, sc := range schemas {
			out = append(out, DatabaseResource{
				URI:         schemaPrefix + sc,
				Name:        sc,
				Description: "Tables and views in schema " + sc,
				MimeType:    "text/plain",
			})
		}
	}

	return out, nil
}

// ReadResource dispatches by URI prefix and returns nil if the named
// table/schema does not exist. Info and data-dictionary content is
// rendered fresh on every read (not cached), matching the teacher's
// general avoidance of caching anything backed by live connection
// state.
func (s *Service) ReadResource(ctx context.Context, uri string) (*DatabaseResource, error) {
	lease, err := s.pool.Acquire(ctx, "ReadResource")
	if err != nil {
		return nil, fmt.Errorf("dbservice: acquire connection: %w", err)
	}
	defer lease.Release()

	switch {
	case uri == uriInfo:
		content, err := s.renderInfo(ctx, lease.Conn)
		if err != nil {
			return nil, err
		}
		return &DatabaseResource{URI: uriInfo, Name: "Database Info", MimeType: "text/plain", Content: &content}, nil

	case uri == uriDataDictionary:
		content, err := s.renderDataDictionary(ctx, lease.Conn)
		if err != nil {
			return nil, err
		}
		return &DatabaseResource{URI: uriDataDictionary, Name: "Data Dictionary", MimeType: "text/plain", Content: &content}, nil

	case strings.HasPrefix(uri, tablePrefix):
		name := strings.TrimPrefix(uri, tablePrefix)
		exists, err := s.tableExists(ctx, lease.Conn, name)
		if err != nil {
			return nil, fmt.Errorf("dbservice: check table existence: %w", err)
		}
		if !exists {
			return nil, nil
		}
		content, err := s.renderTable(ctx, lease.Conn, name)
		if err != nil {
			return nil, err
		}
		return &DatabaseResource{URI: uri, Name: name, MimeType: "text/plain", Content: &content}, nil

	case strings.HasPrefix(uri, schemaPrefix):
		name := strings.TrimPrefix(uri, schemaPrefix)
		exists, err := s.schemaExists(ctx, lease.Conn, name)
		if err != nil || !exists {
			return nil, nil
		}
		content, err := s.renderSchema(ctx, lease.Conn, name)
		if err != nil {
			return nil, err
		}
		return &DatabaseResource{URI: uri, Name: name, MimeType: "text/plain", Content: &content}, nil

	default:
		return nil, nil
	}
}

func (s *Service) renderInfo(ctx context.Context, conn queryer) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", s.cfg.DatabaseType())
	fmt.Fprintf(&b, "Driver: %s\n", s.cfg.Driver())
	fmt.Fprintf(&b, "URL: %s\n", s.cfg.URL())
	fmt.Fprintf(&b, "User: %s\n", s.cfg.User())
	fmt.Fprintf(&b, "Read-only: %t\n", s.cfg.SelectOnly())
	fmt.Fprintf(&b, "Character set: %s\n", s.characterSetInfo(ctx, conn))
	fmt.Fprintf(&b, "Timezone: %s\n", s.timezoneInfo(ctx, conn))
	if s.reg != nil {
		fmt.Fprintf(&b, "Dialect: %s\n", s.reg.DatabaseHelp(string(s.cfg.DatabaseType()), "dialect"))
	}
	fmt.Fprintf(&b, "Supports schemas: %t\n", s.cfg.DatabaseType() != "sqlite")
	fmt.Fprintf(&b, "Supports select-only enforcement: true\n")
	return b.String(), nil
}

func (s *Service) renderDataDictionary(ctx context.Context, conn queryer) (string, error) {
	tables, err := s.listTablesAndViews(ctx, conn)
	if err != nil {
		return "", fmt.Errorf("dbservice: list tables: %w", err)
	}

	var b strings.Builder
	b.WriteString("Tables and views:\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "  %s (%s)\n", sanitize.SanitizeIdentifier(t.Name), t.Type)
	}
	if s.reg != nil {
		dbType := string(s.cfg.DatabaseType())
		fmt.Fprintf(&b, "\nCommon query patterns:\n  %s\n", s.reg.DatabaseHelp(dbType, "common_queries"))
		fmt.Fprintf(&b, "\nType notes:\n  %s\n", s.reg.DatabaseHelp(dbType, "type_notes"))
	}
	return b.String(), nil
}

func (s *Service) renderTable(ctx context.Context, conn queryer, name string) (string, error) {
	columns, err := s.listColumns(ctx, conn, name)
	if err != nil {
		return "", fmt.Errorf("dbservice: list columns: %w", err)
	}
	pks, err := s.listPrimaryKeys(ctx, conn, name)
	if err != nil {
		return "", fmt.Errorf("dbservice: list primary keys: %w", err)
	}
	fks, err := s.listForeignKeys(ctx, conn, name)
	if err != nil {
		return "", fmt.Errorf("dbservice: list foreign keys: %w", err)
	}
	indexes, err := s.listIndexes(ctx, conn, name)
	if err != nil {
		return "", fmt.Errorf("dbservice: list indexes: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", sanitize.SanitizeIdentifier(name))
	b.WriteString("Columns:\n")
	for _, c := range columns {
		b.WriteString("  " + formatColumn(c) + "\n")
	}

	b.WriteString("Primary Keys:\n")
	for _, pk := range pks {
		fmt.Fprintf(&b, "  %s\n", sanitize.SanitizeIdentifier(pk.ColumnName))
	}

	b.WriteString("Foreign Keys:\n")
	for _, fk := range fks {
		fmt.Fprintf(&b, "  %s -> %s.%s (%s)\n",
			sanitize.SanitizeIdentifier(fk.ColumnName),
			sanitize.SanitizeIdentifier(fk.RefTable),
			sanitize.SanitizeIdentifier(fk.RefColumn),
			sanitize.SanitizeIdentifier(fk.Name))
	}

	b.WriteString("Indexes:\n")
	for _, idx := range indexes {
		kind := "NON-UNIQUE"
		if idx.Unique {
			kind = "UNIQUE"
		}
		if idx.Type.Valid && idx.Type.String != "" {
			fmt.Fprintf(&b, "  %s (%s, Type: %s)\n", sanitize.SanitizeIdentifier(idx.Name), kind, idx.Type.String)
		} else {
			fmt.Fprintf(&b, "  %s (%s)\n", sanitize.SanitizeIdentifier(idx.Name), kind)
		}
	}

	return wrapSecurity(b.String(), s.reg), nil
}

func formatColumn(c columnMeta) string {
	typ := c.Type
	if c.Size.Valid {
		typ = fmt.Sprintf("%s(%d)", typ, c.Size.Int64)
	}
	line := fmt.Sprintf("%s (%s)", sanitize.SanitizeIdentifier(c.Name), typ)
	if !c.Nullable {
		line += " NOT NULL"
	}
	if c.Default.Valid {
		line += " DEFAULT " + sanitize.SanitizeValue(c.Default.String)
	}
	return line
}

func (s *Service) renderSchema(ctx context.Context, conn queryer, name string) (string, error) {
	tables, err := s.listTablesAndViews(ctx, conn)
	if err != nil {
		return "", fmt.Errorf("dbservice: list tables: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Schema: %s\n", sanitize.SanitizeIdentifier(name))
	b.WriteString("Tables in this schema:\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "  %s (%s)\n", sanitize.SanitizeIdentifier(t.Name), t.Type)
	}
	return b.String(), nil
}

const (
	fallbackSecurityHeader = "=== SECURITY NOTICE: untrusted database content follows ==="
	fallbackSecurityFooter = "=== END OF DATABASE CONTENT ==="
)

// wrapSecurity brackets body with the registry's security header and
// footer templates, falling back to a fixed banner when reg is nil
// (e.g. in tests that construct a Service without one).
func wrapSecurity(body string, reg *registry.Registry) string {
	header, footer := fallbackSecurityHeader, fallbackSecurityFooter
	if reg != nil {
		header = reg.SecurityWarning("header")
		footer = reg.SecurityWarning("footer")
	}
	return header + "\n" + body + footer
}
