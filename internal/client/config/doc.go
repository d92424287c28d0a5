// Package config loads runtime configuration for the daybook client.
//
// Sources & precedence
//
//  1. Built-in defaults (see Default).
//  2. Optional config file selected with -c / -config / --config. Files
//     ending in .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags, which override earlier values.
//
// Durations in files are strings like "3s" or integer nanoseconds:
//
//	data_dir: ~/.local/share/daybook
//	backup:
//	  kind: s3
//	  blob_name: daybook-sync.json
//	  s3:
//	    bucket: backups
//	    region: eu-north-1
//	sync:
//	  debounce: 3s
//	  poll_interval: 45s
//	log:
//	  file: daybook.log
//	  level: info
package config
