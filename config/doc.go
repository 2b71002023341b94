/*
Package config loads oping configuration files in YAML format, holding the
hosts to ping as well as session and CLI options. Environment variable
references in the form of $VAR, ${VAR}, and ${VAR:-default} get expanded
before parsing.

	hosts:
	  - localhost
	  - ${GATEWAY:-192.168.0.1}
	timeout: 2s
	ttl: 64
	family: ipv4
	count: 5
*/
package config
