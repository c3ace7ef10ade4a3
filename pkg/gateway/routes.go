// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

// RouteParams names the path parameters of the entity routes.
type RouteParams struct {
	Host string
	Type string
	ID   string
}

// DefaultRouteParams returns the standard path parameter names.
func DefaultRouteParams() RouteParams {
	return RouteParams{Host: "host", Type: "type", ID: "id"}
}

// CollectionPattern returns "/{host}/{type}" for the configured names.
func (p RouteParams) CollectionPattern() string {
	return "/{" + p.Host + "}/{" + p.Type + "}"
}

// ItemPattern returns "/{host}/{type}/{id}" for the configured names.
func (p RouteParams) ItemPattern() string {
	return p.CollectionPattern() + "/{" + p.ID + "}"
}
