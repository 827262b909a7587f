/*
LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package main

import (
	"context"
	"fmt"

	"github.com/ausocean/openfish/datastore"

	"github.com/ausocean/streamwatch/config"
)

// newDatastore opens the file-backed store when Config.StoreDir is set
// (manual/dev use), or the cloud datastore otherwise, mirroring the
// "file" vs "cloud" kind switch the source's own store construction
// uses.
func newDatastore(ctx context.Context, cfg config.Config) (datastore.Store, error) {
	if cfg.StoreDir != "" {
		store, err := datastore.NewStore(ctx, "file", projectID, cfg.StoreDir)
		if err != nil {
			return nil, fmt.Errorf("could not open file datastore at %s: %w", cfg.StoreDir, err)
		}
		return store, nil
	}

	store, err := datastore.NewStore(ctx, "cloud", projectID, "")
	if err != nil {
		return nil, fmt.Errorf("could not open cloud datastore: %w", err)
	}
	return store, nil
}
