// Package database provides SQLite connectivity for PiHome Core.
//
// It owns the connection lifecycle (WAL mode, busy timeout, a single
// writer connection) and applies the embedded schema migrations that
// create the sensors, devices and rules tables.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Every write the entity store performs is a single
// statement, so readers never observe a half-written record.
package database
