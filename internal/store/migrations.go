package store

const schema = `
CREATE TABLE IF NOT EXISTS tools (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    slug               TEXT NOT NULL UNIQUE,
    name               TEXT NOT NULL,
    url                TEXT NOT NULL DEFAULT '',
    repo_url           TEXT NOT NULL DEFAULT '',
    category           TEXT NOT NULL DEFAULT '',
    aliases            TEXT NOT NULL DEFAULT '[]',
    visits             INTEGER NOT NULL DEFAULT 0,
    reviews_count      INTEGER NOT NULL DEFAULT 0,
    avg_rating         REAL NOT NULL DEFAULT 0,
    bookmarks          INTEGER NOT NULL DEFAULT 0,
    upvotes            INTEGER NOT NULL DEFAULT 0,
    internal_score     REAL NOT NULL DEFAULT 0,
    external_score     REAL NOT NULL DEFAULT 0,
    external_sources   INTEGER NOT NULL DEFAULT 0,
    hybrid_score       REAL NOT NULL DEFAULT 0,
    rank               INTEGER NOT NULL DEFAULT 0,
    trend_direction    TEXT NOT NULL DEFAULT 'new',
    trend_magnitude    INTEGER NOT NULL DEFAULT 0,
    has_benchmark_data BOOLEAN NOT NULL DEFAULT 0,
    created_at         DATETIME NOT NULL,
    updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tools_category ON tools(category);
CREATE INDEX IF NOT EXISTS idx_tools_hybrid ON tools(hybrid_score);

CREATE TABLE IF NOT EXISTS tool_external_scores (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    tool_id          INTEGER NOT NULL REFERENCES tools(id),
    source_key       TEXT NOT NULL,
    normalized_score REAL NOT NULL,
    raw_payload      TEXT NOT NULL DEFAULT '{}',
    updated_at       DATETIME NOT NULL,
    UNIQUE(tool_id, source_key)
);

CREATE TABLE IF NOT EXISTS tool_benchmark_scores (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    tool_id          INTEGER NOT NULL REFERENCES tools(id),
    benchmark_source TEXT NOT NULL,
    overall_score    REAL NOT NULL DEFAULT 0,
    coding_score     REAL NOT NULL DEFAULT 0,
    math_score       REAL NOT NULL DEFAULT 0,
    reasoning_score  REAL NOT NULL DEFAULT 0,
    raw_payload      TEXT NOT NULL DEFAULT '{}',
    updated_at       DATETIME NOT NULL,
    UNIQUE(tool_id, benchmark_source)
);

CREATE TABLE IF NOT EXISTS tool_pricing_data (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    tool_id      INTEGER NOT NULL REFERENCES tools(id),
    source       TEXT NOT NULL,
    input_price  REAL NOT NULL DEFAULT 0,
    output_price REAL NOT NULL DEFAULT 0,
    free         BOOLEAN NOT NULL DEFAULT 0,
    value_score  REAL NOT NULL DEFAULT 0,
    raw_payload  TEXT NOT NULL DEFAULT '{}',
    updated_at   DATETIME NOT NULL,
    UNIQUE(tool_id, source)
);

CREATE TABLE IF NOT EXISTS tool_candidates (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    slug            TEXT NOT NULL UNIQUE,
    name            TEXT NOT NULL,
    url             TEXT NOT NULL DEFAULT '',
    repo_url        TEXT NOT NULL DEFAULT '',
    category        TEXT NOT NULL DEFAULT '',
    votes           INTEGER NOT NULL DEFAULT 0,
    stars           INTEGER NOT NULL DEFAULT 0,
    forks           INTEGER NOT NULL DEFAULT 0,
    open_issues     INTEGER NOT NULL DEFAULT 0,
    has_benchmark   BOOLEAN NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'pending',
    quality_score   REAL NOT NULL DEFAULT 0,
    discovered_from TEXT NOT NULL DEFAULT '',
    created_at      DATETIME NOT NULL,
    evaluated_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_candidates_status ON tool_candidates(status);

CREATE TABLE IF NOT EXISTS weight_config (
    category TEXT NOT NULL,
    key      TEXT NOT NULL,
    value    REAL NOT NULL,
    UNIQUE(category, key)
);

CREATE TABLE IF NOT EXISTS weekly_rankings (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    tool_id      INTEGER NOT NULL REFERENCES tools(id),
    week_start   TEXT NOT NULL,
    rank         INTEGER NOT NULL,
    hybrid_score REAL NOT NULL,
    created_at   DATETIME NOT NULL,
    UNIQUE(tool_id, week_start)
);

CREATE TABLE IF NOT EXISTS trend_snapshots (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    tool_id       INTEGER NOT NULL REFERENCES tools(id),
    snapshot_date TEXT NOT NULL,
    rank          INTEGER NOT NULL,
    hybrid_score  REAL NOT NULL,
    created_at    DATETIME NOT NULL,
    UNIQUE(tool_id, snapshot_date)
);

CREATE INDEX IF NOT EXISTS idx_trend_snapshots_date ON trend_snapshots(snapshot_date);

CREATE TABLE IF NOT EXISTS category_popularity (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    category      TEXT NOT NULL,
    period        TEXT NOT NULL,
    tool_count    INTEGER NOT NULL DEFAULT 0,
    total_visits  INTEGER NOT NULL DEFAULT 0,
    total_reviews INTEGER NOT NULL DEFAULT 0,
    avg_rating    REAL NOT NULL DEFAULT 0,
    popularity    REAL NOT NULL DEFAULT 0,
    updated_at    DATETIME NOT NULL,
    UNIQUE(category, period)
);

CREATE TABLE IF NOT EXISTS run_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    source_key  TEXT NOT NULL,
    status      TEXT NOT NULL,
    total       INTEGER NOT NULL DEFAULT 0,
    updated     INTEGER NOT NULL DEFAULT 0,
    skipped     INTEGER NOT NULL DEFAULT 0,
    errors      TEXT NOT NULL DEFAULT '[]',
    started_at  DATETIME NOT NULL,
    finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_run_log_source ON run_log(source_key);
`
