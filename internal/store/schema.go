package store

// postgresMigration is idempotent: every table, column and index is created
// only if missing, so it is safe to run before each pipeline execution.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS linkedin_posts (
	id                            SERIAL PRIMARY KEY,
	post_url                      TEXT NOT NULL UNIQUE,
	post_name                     TEXT,
	last_scraped_at               TIMESTAMPTZ,
	scrape_count                  INTEGER NOT NULL DEFAULT 0,
	total_reactions               INTEGER NOT NULL DEFAULT 0,
	text                          TEXT,
	post_type                     TEXT,
	comments                      INTEGER,
	reposts                       INTEGER,
	reshared_post_url             TEXT,
	reshared_post_total_reactions INTEGER,
	media_type                    TEXT,
	media_url                     TEXT,
	article_url                   TEXT,
	article_title                 TEXT,
	duration                      REAL,
	mime_type                     TEXT,
	thumbnail                     TEXT,
	video_url                     TEXT,
	image_url                     TEXT,
	enriched                      BOOLEAN NOT NULL DEFAULT FALSE,
	enriched_time                 TIMESTAMPTZ
);

ALTER TABLE linkedin_posts ADD COLUMN IF NOT EXISTS sponsored BOOLEAN;
ALTER TABLE linkedin_posts ADD COLUMN IF NOT EXISTS time_to_create INTEGER;
ALTER TABLE linkedin_posts ADD COLUMN IF NOT EXISTS sentiment TEXT;
ALTER TABLE linkedin_posts ADD COLUMN IF NOT EXISTS target_audience TEXT;
ALTER TABLE linkedin_posts ADD COLUMN IF NOT EXISTS video_type TEXT;
ALTER TABLE linkedin_posts ADD COLUMN IF NOT EXISTS created_at TIMESTAMPTZ NOT NULL DEFAULT now();

CREATE TABLE IF NOT EXISTS linkedin_posts_scrapes (
	id              SERIAL PRIMARY KEY,
	post_url        TEXT NOT NULL REFERENCES linkedin_posts(post_url),
	run_id          TEXT,
	ran_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	reactions_count INTEGER NOT NULL DEFAULT 0,
	cost            NUMERIC(10, 4) NOT NULL DEFAULT 0,
	status          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS linkedin_engagers_by_post (
	id              SERIAL PRIMARY KEY,
	scrape_id       INTEGER REFERENCES linkedin_posts_scrapes(id),
	linkedin_url    TEXT NOT NULL,
	name            TEXT,
	headline        TEXT,
	engagement_type TEXT,
	post_url        TEXT NOT NULL REFERENCES linkedin_posts(post_url),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (linkedin_url, post_url)
);

CREATE TABLE IF NOT EXISTS linkedin_contacts (
	id                        SERIAL PRIMARY KEY,
	identity_key              TEXT NOT NULL UNIQUE,
	linkedin_url              TEXT NOT NULL,
	name                      TEXT,
	headline                  TEXT,
	post_name                 TEXT,
	company                   TEXT,
	title                     TEXT,
	engager_audience          TEXT,
	engager_bucketed_position TEXT,
	pushed_to_crm             BOOLEAN NOT NULL DEFAULT FALSE,
	crm_id                    TEXT,
	pushed_at                 TIMESTAMPTZ,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE linkedin_contacts ADD COLUMN IF NOT EXISTS company_title_attempted_at TIMESTAMPTZ;

CREATE INDEX IF NOT EXISTS idx_linkedin_posts_due ON linkedin_posts(scrape_count, last_scraped_at);
CREATE INDEX IF NOT EXISTS idx_linkedin_posts_enriched ON linkedin_posts(enriched) WHERE enriched = FALSE;
CREATE INDEX IF NOT EXISTS idx_linkedin_posts_scrapes_post_url ON linkedin_posts_scrapes(post_url);
CREATE INDEX IF NOT EXISTS idx_linkedin_engagers_by_post_post_url ON linkedin_engagers_by_post(post_url);
CREATE INDEX IF NOT EXISTS idx_linkedin_contacts_linkedin_url ON linkedin_contacts(linkedin_url);
`
