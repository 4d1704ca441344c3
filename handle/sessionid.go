package handle

import (
	"sync"

	"github.com/teris-io/shortid"
)

// sessionIDABC supplies a custom alphabet to shortid rather than the
// library default, so session IDs read as opaque tokens rather than
// base58/base62 noise.
const sessionIDABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sidOnce sync.Once
	sid     *shortid.Shortid
)

func generator() *shortid.Shortid {
	sidOnce.Do(func() {
		sid = shortid.MustNew(1, sessionIDABC, 0)
	})
	return sid
}

// NewSessionID returns a short, URL-safe identifier for one client
// connection, used to tag log lines (ulog.WithSession) and as the
// ServerBlock.ServerID a server reports back at handshake.
func NewSessionID() string {
	return generator().MustGenerate()
}
