package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Users table
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT UNIQUE NOT NULL,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'user',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Workspaces table
			CREATE TABLE IF NOT EXISTS workspaces (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				created_by TEXT NOT NULL,
				is_archived INTEGER NOT NULL DEFAULT 0,
				archived_at DATETIME,
				archived_by TEXT,
				delete_scheduled_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Workspace membership: single source of truth for both the
			-- user-side and workspace-side views.
			CREATE TABLE IF NOT EXISTS workspace_members (
				workspace_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'viewer',
				joined_at DATETIME NOT NULL,
				PRIMARY KEY (workspace_id, user_id),
				FOREIGN KEY (workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Workspace invites
			CREATE TABLE IF NOT EXISTS invites (
				id TEXT PRIMARY KEY,
				workspace_id TEXT NOT NULL,
				email TEXT NOT NULL,
				role TEXT NOT NULL,
				token TEXT UNIQUE NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				invited_by TEXT NOT NULL,
				expires_at DATETIME NOT NULL,
				accepted_at DATETIME,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
			);

			-- Projects table
			CREATE TABLE IF NOT EXISTS projects (
				id TEXT PRIMARY KEY,
				workspace_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT,
				status TEXT NOT NULL DEFAULT 'Planning',
				progress INTEGER NOT NULL DEFAULT 10,
				created_by TEXT NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 1,
				total_tasks INTEGER NOT NULL DEFAULT 0,
				completed_tasks INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
			);

			-- Project categories, identified by (project_id, name)
			CREATE TABLE IF NOT EXISTS project_categories (
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'Not Started',
				position INTEGER NOT NULL DEFAULT 0,
				completed_at DATETIME,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (project_id, name),
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);

			-- Category member roster
			CREATE TABLE IF NOT EXISTS category_members (
				project_id TEXT NOT NULL,
				category_name TEXT NOT NULL,
				user_id TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'member',
				PRIMARY KEY (project_id, category_name, user_id),
				FOREIGN KEY (project_id, category_name) REFERENCES project_categories(project_id, name) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Tasks table
			CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				category_name TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT,
				assignee_id TEXT NOT NULL,
				created_by TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'to-do',
				priority TEXT NOT NULL DEFAULT 'medium',
				start_date DATETIME NOT NULL,
				due_date DATETIME NOT NULL,
				duration_days INTEGER NOT NULL DEFAULT 1,
				completed_at DATETIME,
				handover_note TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);

			-- Task attachment metadata (files live in external storage)
			CREATE TABLE IF NOT EXISTS task_attachments (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL,
				filename TEXT NOT NULL,
				url TEXT NOT NULL,
				type TEXT,
				size INTEGER NOT NULL DEFAULT 0,
				mime_type TEXT,
				uploaded_by TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
			);

			-- Notifications table
			CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				recipient_id TEXT NOT NULL,
				sender_id TEXT,
				type TEXT NOT NULL,
				title TEXT NOT NULL,
				message TEXT NOT NULL,
				workspace_id TEXT,
				project_id TEXT,
				task_id TEXT,
				invite_id TEXT,
				is_read INTEGER NOT NULL DEFAULT 0,
				read_at DATETIME,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (recipient_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Refresh tokens table
			CREATE TABLE IF NOT EXISTS refresh_tokens (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				token_hash TEXT UNIQUE NOT NULL,
				expires_at DATETIME NOT NULL,
				created_at DATETIME NOT NULL,
				revoked INTEGER NOT NULL DEFAULT 0,
				revoked_at DATETIME,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			CREATE INDEX IF NOT EXISTS idx_members_user ON workspace_members(user_id);
			CREATE INDEX IF NOT EXISTS idx_invites_token ON invites(token);
			CREATE INDEX IF NOT EXISTS idx_invites_workspace_email ON invites(workspace_id, email, status);
			CREATE INDEX IF NOT EXISTS idx_invites_expiry ON invites(expires_at);
			CREATE INDEX IF NOT EXISTS idx_projects_workspace ON projects(workspace_id, is_active);
			CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
			CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks(project_id, category_name);
			CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
			CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read);
			CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens(user_id);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
