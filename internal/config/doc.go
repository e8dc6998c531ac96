// Package config loads javacontext settings.
//
// Values are layered: built-in defaults, then javacontext.toml (or the file
// given with --config), then environment variables. A .env file in the
// working directory is loaded into the environment first.
//
//	[paths]
//	data_dir = "~/.javacontext"
//
//	[ingestion]
//	batch_size = 20
//	flush_interval = "5s"
//
//	[enrichment]
//	provider = "openai"
//
//	[embedding]
//	provider = "jina"
package config
