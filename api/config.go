package api

// Config is the root of a dbref configuration file.
//
//	store {
//	  path      = "dbref.db"
//	  read_only = false
//	}
//	resolve {
//	  collections = ["users", "posts"]
//	  max_depth   = 3
//	  hop_limit   = 10000
//	}
//	log {
//	  level  = "info"
//	  format = "text"
//	}
type Config struct {
	Store   *Store   `hcl:"store,block" json:"store,omitempty"`
	Resolve *Resolve `hcl:"resolve,block" json:"resolve,omitempty"`
	Log     *Log     `hcl:"log,block" json:"log,omitempty"`
}

// Store selects the SQLite database.
type Store struct {
	// Path of the database file.
	Path string `hcl:"path,optional" json:"path,omitempty"`
	// ReadOnly opens an existing database with writes disabled.
	ReadOnly bool `hcl:"read_only,optional" json:"read_only,omitempty"`
}

// Resolve holds the defaults for reference resolution.
type Resolve struct {
	// Collections is the allow-list. Absent means every collection; an empty
	// list resolves nothing.
	Collections []string `hcl:"collections,optional" json:"collections,omitempty"`
	// MaxDepth bounds resolution hops per path. Absent or -1 means unbounded.
	MaxDepth *int `hcl:"max_depth,optional" json:"max_depth,omitempty"`
	// HopLimit caps substitutions per call. 0 disables the cap.
	HopLimit int `hcl:"hop_limit,optional" json:"hop_limit,omitempty"`
}

// Log configures logrus.
type Log struct {
	Level  string `hcl:"level,optional" json:"level,omitempty"`   // panic … trace
	Format string `hcl:"format,optional" json:"format,omitempty"` // text or json
}
