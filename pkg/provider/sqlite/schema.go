package sqlite

// Schema contains the SQL statements to create the object table.
const Schema = `
-- Objects table: one row per stored file
CREATE TABLE IF NOT EXISTS objects (
    name       TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    size       INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_objects_updated ON objects(updated_at);
`
