package store

// schemaVersionV1 is the initial screening schema.
const schemaVersionV1 = 1

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// schemaV1 is the full DDL for a fresh database.
const schemaV1 = `
CREATE TABLE cases (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id    TEXT NOT NULL UNIQUE,
    client_type  TEXT NOT NULL,
    display_name TEXT NOT NULL,
    stage        TEXT NOT NULL,
    status       TEXT NOT NULL,
    risk_score   INTEGER NOT NULL DEFAULT 0,
    risk_band    TEXT NOT NULL DEFAULT '',
    grade        TEXT NOT NULL DEFAULT '',
    decision     TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE TABLE findings (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    finding_id TEXT NOT NULL UNIQUE,
    case_id    INTEGER NOT NULL REFERENCES cases(id),
    payload    BLOB NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX idx_findings_case ON findings(case_id);

CREATE TABLE checkpoints (
    case_id    INTEGER NOT NULL REFERENCES cases(id),
    stage      TEXT NOT NULL,
    payload    BLOB NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (case_id, stage)
);

CREATE TABLE decisions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    case_id    INTEGER NOT NULL REFERENCES cases(id),
    point_id   TEXT NOT NULL,
    option     TEXT NOT NULL,
    officer    TEXT NOT NULL,
    note       TEXT NOT NULL DEFAULT '',
    override   INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX idx_decisions_case ON decisions(case_id);

CREATE TABLE sessions (
    case_id   INTEGER PRIMARY KEY REFERENCES cases(id),
    officer   TEXT NOT NULL,
    opened_at TEXT NOT NULL
);

CREATE TABLE schema_version (
    version INTEGER NOT NULL
);
`
