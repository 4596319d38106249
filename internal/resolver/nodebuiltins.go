package resolver

// nodeBuiltins lists Node.js core module specifiers. The sizer marks these
// external unconditionally: a production bundler never inlines them, and
// esbuild errors on an unresolvable bare "fs" import unless told it's
// external.
var nodeBuiltins = map[string]bool{
	"assert": true, "buffer": true, "child_process": true, "cluster": true,
	"crypto": true, "dgram": true, "dns": true, "events": true, "fs": true,
	"http": true, "http2": true, "https": true, "net": true, "os": true,
	"path": true, "perf_hooks": true, "process": true, "punycode": true,
	"querystring": true, "readline": true, "stream": true, "string_decoder": true,
	"timers": true, "tls": true, "tty": true, "url": true, "util": true,
	"v8": true, "vm": true, "worker_threads": true, "zlib": true,
}

// IsNodeBuiltin reports whether specifier names a Node.js core module, either
// bare ("fs") or under the "node:" protocol prefix ("node:fs").
func IsNodeBuiltin(specifier string) bool {
	if len(specifier) > len("node:") && specifier[:len("node:")] == "node:" {
		specifier = specifier[len("node:"):]
	}
	return nodeBuiltins[specifier]
}
