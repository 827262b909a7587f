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
	"fmt"

	"github.com/ausocean/utils/logging"
)

// printfLogger adapts the structured, key-value logging.Logger used
// throughout this codebase to the narrow Printf-style interface the
// discovery/pipeline/ingestqueue/monitor packages depend on, so they
// don't need to import logging themselves.
type printfLogger struct {
	l logging.Logger
}

func (p printfLogger) Printf(format string, args ...interface{}) {
	p.l.Info(fmt.Sprintf(format, args...))
}
