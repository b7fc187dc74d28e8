//go:build !sqlite
// +build !sqlite

package queue

import (
	"errors"

	"cfpbot/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite queue store not built: build with -tags sqlite")
}
