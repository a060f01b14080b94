package storage

const schema = `
-- The 'sources' table tracks where synced decks come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- local | git
    last_scanned DATETIME
);

-- The 'decks' table stores deck metadata. Synced decks remember their source and file.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    underglow_color TEXT NOT NULL DEFAULT '',
    source_id INTEGER,
    source_file TEXT,
    progress_updated_at DATETIME,

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

-- The 'cards' table stores the term/definition pairs of each deck in display order.
CREATE TABLE IF NOT EXISTS cards (
    deck_id TEXT NOT NULL,
    id TEXT NOT NULL,
    position INTEGER NOT NULL,
    term TEXT NOT NULL,
    definition TEXT NOT NULL,
    image TEXT NOT NULL DEFAULT '',

    PRIMARY KEY (deck_id, id),
    FOREIGN KEY(deck_id) REFERENCES decks(id)
);

-- The 'card_progress' table holds the last persisted review state of each card.
-- It is rewritten in full on every progress save.
CREATE TABLE IF NOT EXISTS card_progress (
    deck_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    streak INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'unfamiliar', -- unfamiliar | learned | mastered
    last_answered DATETIME,

    PRIMARY KEY (deck_id, card_id)
);
`
