package database

// Tag names are unique case-insensitively through name_key, which the tags
// package fills with its own fold of the name. The column compares bytes in
// both dialects so the database never applies a second folding rule.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'user',
		dodo_customer_id VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		last_login_at DATETIME NULL
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS tags (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(191) NOT NULL,
		name_key VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY idx_tags_name_key (name_key)
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS opportunities (
		id VARCHAR(36) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		organization VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		location VARCHAR(255) NOT NULL DEFAULT '',
		remote BOOLEAN NOT NULL DEFAULT FALSE,
		kind VARCHAR(32) NOT NULL,
		apply_url VARCHAR(1024) NOT NULL DEFAULT '',
		deadline DATETIME NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'open',
		created_by VARCHAR(36) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX idx_opportunities_status (status, deadline),
		INDEX idx_opportunities_kind (kind)
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS opportunity_tags (
		opportunity_id VARCHAR(36) NOT NULL,
		tag_id VARCHAR(36) NOT NULL,
		position INT NOT NULL DEFAULT 0,
		PRIMARY KEY (opportunity_id, tag_id),
		INDEX idx_opportunity_tags_tag (tag_id),
		FOREIGN KEY (opportunity_id) REFERENCES opportunities(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id)
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS bookmarks (
		user_id VARCHAR(36) NOT NULL,
		opportunity_id VARCHAR(36) NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, opportunity_id),
		FOREIGN KEY (opportunity_id) REFERENCES opportunities(id) ON DELETE CASCADE
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS toolkits (
		id VARCHAR(36) PRIMARY KEY,
		slug VARCHAR(191) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		price_cents BIGINT NOT NULL DEFAULT 0,
		currency VARCHAR(8) NOT NULL DEFAULT 'USD',
		dodo_product_id VARCHAR(255) NOT NULL DEFAULT '',
		published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS purchases (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		toolkit_id VARCHAR(36) NOT NULL,
		checkout_session_id VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		payment_id VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX idx_purchases_user (user_id, status),
		FOREIGN KEY (toolkit_id) REFERENCES toolkits(id)
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS webhook_events (
		id VARCHAR(255) PRIMARY KEY,
		type VARCHAR(64) NOT NULL,
		received_at DATETIME NOT NULL
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS onboarding_profiles (
		user_id VARCHAR(36) PRIMARY KEY,
		headline VARCHAR(255) NOT NULL DEFAULT '',
		school VARCHAR(255) NOT NULL DEFAULT '',
		graduation_year INT NOT NULL DEFAULT 0,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at DATETIME NOT NULL
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS profile_interests (
		user_id VARCHAR(36) NOT NULL,
		tag_id VARCHAR(36) NOT NULL,
		position INT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, tag_id),
		FOREIGN KEY (tag_id) REFERENCES tags(id)
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		dodo_customer_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		last_login_at DATETIME
	)`,

	`CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		name_key TEXT NOT NULL COLLATE BINARY,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name_key ON tags(name_key)`,

	`CREATE TABLE IF NOT EXISTS opportunities (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		organization TEXT NOT NULL,
		description TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		remote BOOLEAN NOT NULL DEFAULT 0,
		kind TEXT NOT NULL,
		apply_url TEXT NOT NULL DEFAULT '',
		deadline DATETIME,
		status TEXT NOT NULL DEFAULT 'open',
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_status ON opportunities(status, deadline)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_kind ON opportunities(kind)`,

	`CREATE TABLE IF NOT EXISTS opportunity_tags (
		opportunity_id TEXT NOT NULL REFERENCES opportunities(id) ON DELETE CASCADE,
		tag_id TEXT NOT NULL REFERENCES tags(id),
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (opportunity_id, tag_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunity_tags_tag ON opportunity_tags(tag_id)`,

	`CREATE TABLE IF NOT EXISTS bookmarks (
		user_id TEXT NOT NULL,
		opportunity_id TEXT NOT NULL REFERENCES opportunities(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, opportunity_id)
	)`,

	`CREATE TABLE IF NOT EXISTS toolkits (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		price_cents INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		dodo_product_id TEXT NOT NULL DEFAULT '',
		published BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		toolkit_id TEXT NOT NULL REFERENCES toolkits(id),
		checkout_session_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		payment_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_user ON purchases(user_id, status)`,

	`CREATE TABLE IF NOT EXISTS webhook_events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		received_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS onboarding_profiles (
		user_id TEXT PRIMARY KEY,
		headline TEXT NOT NULL DEFAULT '',
		school TEXT NOT NULL DEFAULT '',
		graduation_year INTEGER NOT NULL DEFAULT 0,
		completed BOOLEAN NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS profile_interests (
		user_id TEXT NOT NULL,
		tag_id TEXT NOT NULL REFERENCES tags(id),
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, tag_id)
	)`,
}
