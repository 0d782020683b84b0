package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS url (
	id INTEGER PRIMARY KEY,
	content TEXT UNIQUE NOT NULL,
	redirect INTEGER REFERENCES url(id)
);

CREATE TABLE IF NOT EXISTS page (
	id INTEGER PRIMARY KEY REFERENCES url(id),
	mod_time INTEGER,
	size INTEGER NOT NULL,
	text TEXT NOT NULL,
	plaintext TEXT NOT NULL,
	title TEXT NOT NULL,
	outlinks TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS word (
	id INTEGER PRIMARY KEY,
	content TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS page_word (
	page_id INTEGER NOT NULL REFERENCES page(id),
	word_id INTEGER NOT NULL REFERENCES word(id),
	PRIMARY KEY (page_id, word_id)
);
CREATE INDEX IF NOT EXISTS idx_page_word_word ON page_word(word_id);

CREATE TABLE IF NOT EXISTS word_positions (
	page_id INTEGER NOT NULL,
	word_id INTEGER NOT NULL,
	positions TEXT NOT NULL,
	frequency INTEGER NOT NULL,
	tf_normalized REAL NOT NULL,
	PRIMARY KEY (page_id, word_id),
	FOREIGN KEY (page_id, word_id) REFERENCES page_word(page_id, word_id)
);

CREATE TABLE IF NOT EXISTS word_positions_title (
	page_id INTEGER NOT NULL,
	word_id INTEGER NOT NULL,
	positions TEXT NOT NULL,
	frequency INTEGER NOT NULL,
	tf_normalized REAL NOT NULL,
	PRIMARY KEY (page_id, word_id),
	FOREIGN KEY (page_id, word_id) REFERENCES page_word(page_id, word_id)
);
`
