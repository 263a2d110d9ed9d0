package database

import (
	"database/sql"
	stdlog "log"

	"github.com/donkeyideas/kamioi-backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateReceiptsTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS receipts (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		filename TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'uploaded',
		stored_path TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS roundup_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		receipt_id TEXT NOT NULL,
		remote_transaction_id TEXT,
		retailer_name TEXT,
		total_round_up TEXT NOT NULL,
		ai_provider TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id),
		FOREIGN KEY(receipt_id) REFERENCES receipts(id),
		UNIQUE(user_id, receipt_id)
	);

	CREATE TABLE IF NOT EXISTS allocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL,
		stock_symbol TEXT NOT NULL,
		stock_name TEXT,
		amount TEXT NOT NULL,
		percentage REAL,
		reason TEXT,
		confidence REAL,
		FOREIGN KEY(transaction_id) REFERENCES roundup_transactions(id)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateReceiptsTable adds columns introduced after the first schema cut.
func migrateReceiptsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='receipts'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'receipts' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'receipts' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'receipts' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'receipts' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(receipts)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'receipts'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'receipts': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'receipts'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'receipts': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'receipts'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'receipts': %v", err)
		}
		return
	}

	if _, ok := columnExists["status"]; !ok {
		_, err := DB.Exec("ALTER TABLE receipts ADD COLUMN status TEXT NOT NULL DEFAULT 'uploaded'")
		if err != nil {
			logger.L.Error("Error adding 'status' column to 'receipts' table", "error", err)
		} else {
			logger.L.Info("Added 'status' column to 'receipts' table")
		}
	}
	if _, ok := columnExists["stored_path"]; !ok {
		_, err := DB.Exec("ALTER TABLE receipts ADD COLUMN stored_path TEXT")
		if err != nil {
			logger.L.Error("Error adding 'stored_path' column to 'receipts' table", "error", err)
		} else {
			logger.L.Info("Added 'stored_path' column to 'receipts' table")
		}
	}
}
