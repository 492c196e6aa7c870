// Package chanconfig provides declarative module configuration with
// dynamic value injection.
//
// Modules declare their parameters against a Registry and receive them
// resolved, typed, and namespaced:
//
//	cfg, err := reg.Init("mypkg.server", chanconfig.Map{
//		"listen":  chanconfig.Param(":8080", chanconfig.String, "address to bind"),
//		"workers": chanconfig.Param(4, chanconfig.Int, "request worker count"),
//		"db_url":  chanconfig.Required(chanconfig.String, "database connection string"),
//	})
//
// A declaration carries a default in the expected type, a parser that
// converts whatever a source configured into the final value, and a
// docstring. Required marks a parameter that must come from a source.
//
// # Channels
//
// Configuration sources are selected by deployment channel: dev (the
// default, for developer machines), alpha (first deployment stage, with
// automated testing), beta (first customer use), and prod. The channel is
// chosen by $CHANCONFIG_CHANNEL.
//
// # Sources
//
// Sources are discovered along a load path of package roots, set by entry
// points and extended by $CHANCONFIG_LOAD_PATH. For each package, a base
// config file (<pkg>/base_config.lua or .toml) loads first, then a
// per-user override (~/.<pkg>_config.lua or .toml). Lua files define one
// function per channel returning a nested table; TOML files carry one
// top-level table per channel. Environment variables matching a
// parameter's flat key (e.g. $MYPKG_SERVER_LISTEN) override everything;
// an empty value means explicit nil.
//
// # Interpolation
//
// String values may reference other parameters by flat key:
//
//	db_url = "postgres://{MYPKG_SERVER_DB_HOST}/app"
//
// References substitute repeatedly until the value stops changing. Wrap a
// string in Verbatim (or call verbatim() in a Lua config file) to exempt
// it from interpolation.
//
// # Merge semantics
//
// Later sources win for scalars and maps. Lists concatenate, the higher
// priority list first. An explicit nil clears a value. A list meeting a
// non-list is a type collision and fails resolution.
package chanconfig
