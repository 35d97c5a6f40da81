package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel carries one JSON payload per changed document row.
const NotifyChannel = "doc_changes"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)`,
	`CREATE OR REPLACE FUNCTION notify_document_change() RETURNS trigger AS $$
	BEGIN
		IF TG_OP = 'DELETE' THEN
			PERFORM pg_notify('` + NotifyChannel + `', json_build_object('collection', OLD.collection, 'id', OLD.id, 'op', TG_OP)::text);
			RETURN OLD;
		END IF;
		PERFORM pg_notify('` + NotifyChannel + `', json_build_object('collection', NEW.collection, 'id', NEW.id, 'op', TG_OP)::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS documents_notify ON documents`,
	`CREATE TRIGGER documents_notify
		AFTER INSERT OR UPDATE OR DELETE ON documents
		FOR EACH ROW EXECUTE FUNCTION notify_document_change()`,
	`CREATE TABLE IF NOT EXISTS accounts (
		uid TEXT PRIMARY KEY,
		email TEXT,
		password_hash TEXT,
		provider TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT accounts_email_uq UNIQUE (email),
		CONSTRAINT accounts_provider_uq UNIQUE (provider, provider_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notification_tokens (
		token TEXT PRIMARY KEY,
		uid TEXT NOT NULL,
		platform TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notification_tokens_uid_idx ON notification_tokens (uid)`,
}

// Migrate creates the tables and change trigger. It is safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
