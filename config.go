package main

// Config is the server's per-process configuration, parsed once from the
// environment at startup and never mutated afterwards. It's passed by value
// so nothing can change it out from under a holder.
type Config struct {
	// BackupToken authorizes requests to the backup webhook. Ignored when
	// no BackupURL is set.
	BackupToken string `env:"BACKUP_TOKEN"`

	// BackupURL is the webhook POSTed after every durable write. Empty
	// disables backup triggers entirely.
	BackupURL string `env:"BACKUP_URL"`

	// Database is the path of the SQLite database file.
	Database string `env:"DATABASE" envDefault:"monograph.db"`

	// Domain is the public domain the site is served from, like
	// "example.com". Empty (the common case in development) suppresses
	// canonical URLs and other absolute-URL metadata.
	Domain string `env:"DOMAIN"`

	// ExtraHead is appended verbatim inside <head> on every page, for
	// things like analytics snippets or extra meta tags.
	ExtraHead string `env:"EXTRA_HEAD"`

	// Password is the admin password. When unset nobody can log in, which
	// makes the site read-only; a warning is logged on every auth check so
	// the misconfiguration is hard to miss.
	Password string `env:"ADMIN_PASSWORD"`

	Port int `env:"PORT" envDefault:"8000"`

	// Production hardens the server for a public deployment: the session
	// secret is generated and persisted instead of using the development
	// constant, and responses carry a Strict-Transport-Security header.
	Production bool `env:"PRODUCTION"`

	// SiteName is the site's display name, shown in the header and the
	// <title> of every page.
	SiteName string `env:"SITE_NAME" envDefault:"monograph"`

	// Username is the admin username.
	Username string `env:"ADMIN_USERNAME" envDefault:"admin"`
}
