package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Charter store (SQLite).
var Migrations = migrate.NewGroup("charter")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_principals",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS charter_principals (
    id                TEXT PRIMARY KEY,
    kind              TEXT NOT NULL CHECK (kind IN ('user', 'service_account')),
    first_name        TEXT NOT NULL DEFAULT '',
    last_name         TEXT NOT NULL DEFAULT '',
    email             TEXT NOT NULL DEFAULT '',
    active            INTEGER NOT NULL DEFAULT 0,
    email_verified_at DATETIME,
    created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),

    UNIQUE(id, kind)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_charter_principals_email
    ON charter_principals (kind, LOWER(email)) WHERE email <> '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS charter_principals`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS charter_roles (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS charter_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_permissions",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS charter_permissions (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    action       TEXT NOT NULL DEFAULT '',
    resource     TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_charter_permissions_resource ON charter_permissions (resource, action);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS charter_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_grants",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS charter_principal_roles (
    principal_id   TEXT NOT NULL,
    principal_kind TEXT NOT NULL,
    role_id        TEXT NOT NULL REFERENCES charter_roles (id) ON DELETE CASCADE,
    created_at     DATETIME NOT NULL DEFAULT (datetime('now')),

    PRIMARY KEY (principal_id, principal_kind, role_id),
    FOREIGN KEY (principal_id, principal_kind)
        REFERENCES charter_principals (id, kind) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_charter_principal_roles_role ON charter_principal_roles (role_id);

CREATE TABLE IF NOT EXISTS charter_principal_permissions (
    principal_id   TEXT NOT NULL,
    principal_kind TEXT NOT NULL,
    permission_id  TEXT NOT NULL REFERENCES charter_permissions (id) ON DELETE CASCADE,
    created_at     DATETIME NOT NULL DEFAULT (datetime('now')),

    PRIMARY KEY (principal_id, principal_kind, permission_id),
    FOREIGN KEY (principal_id, principal_kind)
        REFERENCES charter_principals (id, kind) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_charter_principal_permissions_perm ON charter_principal_permissions (permission_id);

CREATE TABLE IF NOT EXISTS charter_role_permissions (
    role_id       TEXT NOT NULL REFERENCES charter_roles (id) ON DELETE CASCADE,
    permission_id TEXT NOT NULL REFERENCES charter_permissions (id) ON DELETE CASCADE,
    created_at    DATETIME NOT NULL DEFAULT (datetime('now')),

    PRIMARY KEY (role_id, permission_id)
);

CREATE INDEX IF NOT EXISTS idx_charter_role_permissions_perm ON charter_role_permissions (permission_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS charter_role_permissions;
DROP TABLE IF EXISTS charter_principal_permissions;
DROP TABLE IF EXISTS charter_principal_roles;
`)
				return err
			},
		},
	)
}
