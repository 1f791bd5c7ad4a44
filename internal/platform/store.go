package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/notecap/pkg/adapters/bolt"
	"github.com/aretw0/notecap/pkg/adapters/fs"
	"github.com/aretw0/notecap/pkg/adapters/memory"
	"github.com/aretw0/notecap/pkg/core"
)

// DefaultBoltFile is the database name of the bolt adapter.
const DefaultBoltFile = "notes.db"

// OpenedStore is a store plus where it lives and how to release it.
type OpenedStore struct {
	Store core.Store
	Path  string
	Close func() error
}

// OpenStore builds the configured store for uri.
// The uri argument is adapter-specific (a directory for "fs" and "bolt").
func OpenStore(ctx context.Context, uri string, opts ...Option) (*OpenedStore, error) {
	return openStore(ctx, uri, parse(opts))
}

func openStore(ctx context.Context, uri string, o *options) (*OpenedStore, error) {
	nop := func() error { return nil }
	if o.store != nil {
		return &OpenedStore{Store: o.store, Path: uri, Close: nop}, nil
	}

	switch o.adapter {
	case "memory":
		return &OpenedStore{Store: memory.NewStore(), Path: "memory", Close: nop}, nil
	case "fs", "bolt":
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}

	path := resolvePath(uri, o)
	file, _ := o.config["file"].(string)
	lockTimeout, _ := o.config["lock_timeout"].(time.Duration)
	isReadOnly, _ := o.config["read_only"].(bool)

	if o.adapter == "bolt" {
		if file == "" || strings.HasSuffix(file, ".json") {
			file = DefaultBoltFile
		}
		s, err := bolt.Open(filepath.Join(path, file), lockTimeout)
		if err != nil {
			return nil, err
		}
		return &OpenedStore{Store: s, Path: path, Close: s.Close}, nil
	}

	mustExist, _ := o.config["must_exist"].(bool)
	systemDir, _ := o.config["system_dir"].(string)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	s := fs.NewStore(fs.Config{
		Path:         path,
		File:         file,
		SystemDir:    systemDir,
		MustExist:    mustExist,
		ReadOnly:     isReadOnly,
		LockTimeout:  lockTimeout,
		Logger:       o.logger,
		ErrorHandler: errorHandler,
	})
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return &OpenedStore{Store: s, Path: path, Close: nop}, nil
}

// resolvePath applies the dev safety sandbox to uri.
func resolvePath(uri string, o *options) string {
	tempDir, _ := o.config["temp_dir"].(bool)
	isReadOnly, _ := o.config["read_only"].(bool)
	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}

	// Read-only access is inherently safe.
	bypassSafety := isReadOnly || !devSafety
	useTemp := tempDir || (IsDevRun() && !bypassSafety)
	resolved := ResolveStorePath(uri, useTemp)

	if IsDevRun() {
		switch {
		case isReadOnly:
			o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
		case bypassSafety:
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		default:
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolved)
		}
	}
	if useTemp && resolved != uri {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", uri, "resolved_path", resolved)
	}
	return resolved
}
