package oauth2client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// childValue is one row of a client child table. lang is only stored by
// localized tables.
type childValue struct {
	lang  string
	value string
}

// childTable maps a client child table onto the Client fields it holds
type childTable struct {
	name      string
	localized bool
	values    func(c *Client) []childValue
	add       func(c *Client, v childValue)
}

// clientChildTables lists every child table written with a client, in
// insert order. All of them are keyed by client_id.
var clientChildTables = []childTable{
	listTable("client_redirect_uris", func(c *Client) *[]string { return &c.RedirectURIs }),
	listTable("client_grant_types", func(c *Client) *[]string { return &c.GrantTypes }),
	listTable("client_response_types", func(c *Client) *[]string { return &c.ResponseTypes }),
	listTable("client_contacts", func(c *Client) *[]string { return &c.Contacts }),
	{
		name: "client_jwks",
		values: func(c *Client) []childValue {
			out := make([]childValue, 0, len(c.JWKS))
			for _, k := range c.JWKS {
				out = append(out, childValue{value: string(k)})
			}
			return out
		},
		add: func(c *Client, v childValue) {
			c.JWKS = append(c.JWKS, json.RawMessage(v.value))
		},
	},
	localizedTable("client_names", func(c *Client) *Localized { return &c.ClientName }),
	localizedTable("client_uris", func(c *Client) *Localized { return &c.ClientURI }),
	localizedTable("client_logo_uris", func(c *Client) *Localized { return &c.LogoURI }),
	localizedTable("client_tos_uris", func(c *Client) *Localized { return &c.TosURI }),
	localizedTable("client_policy_uris", func(c *Client) *Localized { return &c.PolicyURI }),
}

func listTable(name string, field func(c *Client) *[]string) childTable {
	return childTable{
		name: name,
		values: func(c *Client) []childValue {
			src := *field(c)
			out := make([]childValue, 0, len(src))
			for _, s := range src {
				out = append(out, childValue{value: s})
			}
			return out
		},
		add: func(c *Client, v childValue) {
			f := field(c)
			*f = append(*f, v.value)
		},
	}
}

func localizedTable(name string, field func(c *Client) *Localized) childTable {
	return childTable{
		name:      name,
		localized: true,
		values: func(c *Client) []childValue {
			src := *field(c)
			out := make([]childValue, 0, len(src))
			for lang, s := range src {
				out = append(out, childValue{lang: lang, value: s})
			}
			return out
		},
		add: func(c *Client, v childValue) {
			f := field(c)
			if *f == nil {
				*f = Localized{}
			}
			(*f)[v.lang] = v.value
		},
	}
}

func (t childTable) columns() []string {
	if t.localized {
		return []string{"client_id", "lang", "value"}
	}
	return []string{"client_id", "value"}
}

func (t childTable) selectQuery() string {
	if t.localized {
		return fmt.Sprintf("SELECT lang, value::text FROM %s WHERE client_id = $1", t.name)
	}
	return fmt.Sprintf("SELECT ''::text, value::text FROM %s WHERE client_id = $1 ORDER BY value", t.name)
}

// PostgresClientRepository implements ClientRepository using PostgreSQL
type PostgresClientRepository struct {
	db *pgxpool.Pool
}

// NewPostgresClientRepository creates a new PostgreSQL client repository
func NewPostgresClientRepository(db *pgxpool.Pool) *PostgresClientRepository {
	return &PostgresClientRepository{db: db}
}

// GetClient reads the client row and all child tables in one snapshot
func (r *PostgresClientRepository) GetClient(ctx context.Context, clientID string) (*Client, error) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, ErrClientNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		c                                               Client
		secretHash, jwksURI, softwareVersion, statement *string
		softwareID                                      *uuid.UUID
	)
	err = tx.QueryRow(ctx, `
		SELECT client_id::text, client_secret_hash, client_secret_expires_at, client_id_issued_at,
		       token_endpoint_auth_method, scope, jwks_uri, software_id, software_version, software_statement
		FROM clients WHERE client_id = $1`, id,
	).Scan(&c.ClientID, &secretHash, &c.ClientSecretExpiresAt, &c.ClientIDIssuedAt,
		&c.TokenEndpointAuthMethod, &c.Scope, &jwksURI, &softwareID, &softwareVersion, &statement)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	c.ClientSecretHash = deref(secretHash)
	c.JWKSURI = deref(jwksURI)
	c.SoftwareVersion = deref(softwareVersion)
	c.SoftwareStatement = deref(statement)
	if softwareID != nil {
		c.SoftwareID = softwareID.String()
	}

	batch := &pgx.Batch{}
	for _, t := range clientChildTables {
		batch.Queue(t.selectQuery(), id)
	}
	results := tx.SendBatch(ctx, batch)
	for _, t := range clientChildTables {
		rows, err := results.Query()
		if err != nil {
			results.Close()
			return nil, fmt.Errorf("failed to read %s: %w", t.name, err)
		}
		values, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (childValue, error) {
			var v childValue
			err := row.Scan(&v.lang, &v.value)
			return v, err
		})
		if err != nil {
			results.Close()
			return nil, fmt.Errorf("failed to scan %s: %w", t.name, err)
		}
		for _, v := range values {
			t.add(&c, v)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("failed to read client children: %w", err)
	}

	return &c, tx.Commit(ctx)
}

func (r *PostgresClientRepository) CreateClientTx(ctx context.Context, fn func(tx ClientTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresClientTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresClientTx struct {
	tx pgx.Tx
}

// SoftwareInstanceExists takes a transaction-scoped advisory lock on the
// software pair so a concurrent registration of the same pair waits for
// this transaction to finish.
func (t *postgresClientTx) SoftwareInstanceExists(ctx context.Context, softwareID, softwareVersion string) (bool, error) {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`, softwareID, softwareVersion)
	if err != nil {
		return false, fmt.Errorf("failed to lock software instance: %w", err)
	}

	var exists bool
	err = t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM clients WHERE software_id::text = $1 AND software_version = $2
		)`, softwareID, softwareVersion).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check software instance: %w", err)
	}
	return exists, nil
}

// CreateClient inserts the client row, then bulk copies every child table
func (t *postgresClientTx) CreateClient(ctx context.Context, client *Client) error {
	id, err := uuid.Parse(client.ClientID)
	if err != nil {
		return fmt.Errorf("invalid client_id: %w", err)
	}

	var softwareID *uuid.UUID
	if client.SoftwareID != "" {
		sid, err := uuid.Parse(client.SoftwareID)
		if err != nil {
			return fmt.Errorf("invalid software_id: %w", err)
		}
		softwareID = &sid
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO clients (client_id, client_secret_hash, client_secret_expires_at, client_id_issued_at,
		                     token_endpoint_auth_method, scope, jwks_uri, software_id, software_version, software_statement)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, nullable(client.ClientSecretHash), client.ClientSecretExpiresAt, client.ClientIDIssuedAt,
		client.TokenEndpointAuthMethod, client.Scope, nullable(client.JWKSURI), softwareID,
		nullable(client.SoftwareVersion), nullable(client.SoftwareStatement))
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	for _, table := range clientChildTables {
		values := table.values(client)
		if len(values) == 0 {
			continue
		}
		rows := make([][]any, 0, len(values))
		for _, v := range values {
			if table.localized {
				rows = append(rows, []any{id, v.lang, v.value})
			} else {
				rows = append(rows, []any{id, v.value})
			}
		}
		if _, err := t.tx.CopyFrom(ctx, pgx.Identifier{table.name}, table.columns(), pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", table.name, err)
		}
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
