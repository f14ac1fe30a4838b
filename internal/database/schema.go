package database

// Each statement runs on its own: DSQL accepts a single DDL statement per
// transaction.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS todos (
		id SERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		status VARCHAR(20) DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed')),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_status ON todos(status)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos(created_at)`,
}

// sqlite has no SERIAL; AUTOINCREMENT keeps ids from being reused.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS todos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		status VARCHAR(20) DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed')),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_status ON todos(status)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos(created_at)`,
}

func schemaStatements(dialect string) []string {
	if dialect == "sqlite" {
		return sqliteSchema
	}
	return postgresSchema
}
