// Package config loads modem settings from YAML or TOML files.
//
// The file format follows the extension: .yaml and .yml are decoded with
// gopkg.in/yaml.v3, .toml with github.com/BurntSushi/toml. Keys missing
// from the file keep their defaults.
//
//	modem:
//	  baud_rate: 1200
//	  mtu: 500
//	  checksum: true
//	device:
//	  backend: minimodem
//	  input_description: USB PnP
//	logging:
//	  level: debug
//	  format: json
//	metrics:
//	  address: 127.0.0.1:9464
//
// Durations are integer milliseconds.
package config
