package kvstore

// dialect is the query set of one SQL backend.
type dialect struct {
	name string
	// goose dialect name and migrations directory
	gooseDialect  string
	migrationsDir string

	get           string
	set           string
	setEx         string
	del           string
	delIfExpired  string
	deleteExpired string
}

var sqliteDialect = dialect{
	name:          "sqlite",
	gooseDialect:  "sqlite3",
	migrationsDir: "sqlite",

	get: `SELECT value, ttl FROM storage WHERE key = ?`,
	set: `
		INSERT INTO storage (key, value, ttl) VALUES (?, ?, NULL)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, ttl = NULL`,
	setEx: `
		INSERT INTO storage (key, value, ttl) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, ttl = excluded.ttl`,
	del:           `DELETE FROM storage WHERE key = ?`,
	delIfExpired:  `DELETE FROM storage WHERE key = ? AND ttl IS NOT NULL AND ttl < ?`,
	deleteExpired: `DELETE FROM storage WHERE ttl IS NOT NULL AND ttl < ? AND substr(key, 1, ?) = ?`,
}

var postgresDialect = dialect{
	name:          "postgres",
	gooseDialect:  "pgx",
	migrationsDir: "postgres",

	get: `SELECT value, ttl FROM storage WHERE key = $1`,
	set: `
		INSERT INTO storage (key, value, ttl) VALUES ($1, $2, NULL)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, ttl = NULL`,
	setEx: `
		INSERT INTO storage (key, value, ttl) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, ttl = EXCLUDED.ttl`,
	del:           `DELETE FROM storage WHERE key = $1`,
	delIfExpired:  `DELETE FROM storage WHERE key = $1 AND ttl IS NOT NULL AND ttl < $2`,
	deleteExpired: `DELETE FROM storage WHERE ttl IS NOT NULL AND ttl < $1 AND substr(key, 1, $2) = $3`,
}
