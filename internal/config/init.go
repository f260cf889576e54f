package config

import (
	"errors"
	"fmt"
	"os"
)

var ErrConfigExists = errors.New("config: file already exists")

const exampleConfig = `# sitebuilder configuration.
site:
  # base_url: https://example.org
  title: My Site
  # description: A few words shown in the site header.
  # date_format: 2006-01-02

build:
  content_dir: content
  cache_dir: cache
  output_dir: public
  # output_suffix: .html
  per_page: 10
  # insert_dates: true

# daemon:
#   listen: :8080
#   live_reload: true
#   rebuild_every: 30m
#   metrics: false

# notify:
#   url: nats://localhost:4222
#   subject: sitebuilder.builds

# history:
#   path: cache/history.db

# deploy:
#   remote: git@example.org:me/site.git
#   branch: main
#   author_name: sitebuilder
#   author_email: sitebuilder@localhost
`

// WriteExample writes a commented starter config to path. It refuses
// to overwrite unless force is set.
func WriteExample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	return os.WriteFile(path, []byte(exampleConfig), 0o644)
}
