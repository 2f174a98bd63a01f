// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package supervisor

import (
	"reflect"

	"github.com/thejerf/suture/v4"
)

// Components are the long-running parts of a server. Nil fields are skipped, so a
// single-instance deployment simply leaves Relay unset.
type Components struct {
	Sweeper   suture.Service
	Scheduler suture.Service
	Hub       suture.Service
	Relay     suture.Service
	HTTP      suture.Service
}

// AddComponents places each component in its layer and returns how many were added.
func (t *SupervisorTree) AddComponents(c Components) int {
	added := 0
	add := func(layer func(suture.Service) suture.ServiceToken, svc suture.Service) {
		if isNil(svc) {
			return
		}
		layer(svc)
		added++
		t.logger.Debug("service added", "service", serviceName(svc))
	}

	add(t.AddDataService, c.Sweeper)
	add(t.AddDataService, c.Scheduler)
	add(t.AddMessagingService, c.Hub)
	add(t.AddMessagingService, c.Relay)
	add(t.AddAPIService, c.HTTP)
	return added
}

// isNil also catches typed nil pointers stored in the interface.
func isNil(svc suture.Service) bool {
	if svc == nil {
		return true
	}
	v := reflect.ValueOf(svc)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

func serviceName(svc suture.Service) string {
	if s, ok := svc.(interface{ String() string }); ok {
		return s.String()
	}
	return reflect.TypeOf(svc).String()
}
