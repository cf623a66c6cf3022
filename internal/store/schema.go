package store

const schema = `
CREATE TABLE IF NOT EXISTS install_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    package TEXT NOT NULL,
    version INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    started_at TIMESTAMP NOT NULL,
    stopped_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS install_tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    install_id INTEGER NOT NULL,
    task TEXT NOT NULL,
    manager TEXT,
    started_at TIMESTAMP NOT NULL,
    FOREIGN KEY (install_id) REFERENCES install_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_package ON install_runs(package);
CREATE INDEX IF NOT EXISTS idx_runs_run_id ON install_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_tasks_install ON install_tasks(install_id);
`
