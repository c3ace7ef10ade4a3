// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package govmomi

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

// classify converts SOAP and task faults into *vsphere.Fault. Errors that
// carry no fault, such as transport failures, return nil.
func classify(err error) *vsphere.Fault {
	if err == nil {
		return nil
	}
	var f *vsphere.Fault
	if errors.As(err, &f) {
		return f
	}

	var detail any
	switch {
	case soap.IsSoapFault(err):
		detail = soap.ToSoapFault(err).VimFault()
	case soap.IsVimFault(err):
		detail = soap.ToVimFault(err)
	default:
		te, ok := asTaskError(err)
		if !ok {
			return nil
		}
		detail = te.fault.Fault
	}
	return vsphere.NewFault(statusFor(detail), err.Error(), err)
}

// statusFor maps a vim fault to the HTTP status reported to clients. SOAP
// fault details decode as values while task and locally wrapped faults are
// pointers, so both forms are accepted.
func statusFor(fault any) int {
	if rv := reflect.ValueOf(fault); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		fault = rv.Elem().Interface()
	}
	switch fault.(type) {
	case types.InvalidLogin, types.NotAuthenticated:
		return http.StatusUnauthorized
	case types.NoPermission:
		return http.StatusForbidden
	case types.ManagedObjectNotFound:
		return http.StatusNotFound
	case types.InvalidProperty, types.InvalidArgument, types.InvalidType:
		return http.StatusBadRequest
	case types.InvalidPowerState, types.InvalidState, types.TaskInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
