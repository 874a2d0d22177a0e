package content

import (
	"net/http"
	"strings"

	"github.com/bastion-web/bastion/pkg/router"
)

// ExpandTarget substitutes redirect macros into a block-return target.
// $HOST is the client's Host header (without port), $REQUEST_URI the full
// request path including query, and $SERVER_NAME the configured server name.
func ExpandTarget(target string, r *http.Request, serverName string) string {
	uri := r.URL.Path
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}

	replacer := strings.NewReplacer(
		"$HOST", router.CanonicalHost(r.Host),
		"$REQUEST_URI", uri,
		"$SERVER_NAME", serverName,
	)
	return replacer.Replace(target)
}
