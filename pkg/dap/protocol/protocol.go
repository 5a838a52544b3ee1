/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package protocol declares the Debug Adapter Protocol message types needed
// to run a minimal debug session: the initialize and disconnect requests and
// the lifecycle events a debug adapter emits. The wire shapes follow the DAP
// specification, so endpoints built on this catalog interoperate with
// standard DAP clients.
//
// The catalog is intentionally small. Applications declare further message
// types the same way: a struct per message built from the schema value
// types, registered once with its field table.
package protocol

import (
	"github.com/microsoft/usvc-dap/pkg/dap"
)

// Source describes source code location information attached to output
// events and breakpoints.
type Source struct {
	Name            dap.Optional[dap.String]
	Path            dap.Optional[dap.String]
	SourceReference dap.Optional[dap.Integer]
	AdapterData     dap.Optional[dap.Any]
}

// SourceType is the descriptor for Source.
var SourceType = dap.RegisterStruct[Source]("source",
	dap.F("name", dap.OptionalOf[dap.String](), func(s *Source) any { return &s.Name }),
	dap.F("path", dap.OptionalOf[dap.String](), func(s *Source) any { return &s.Path }),
	dap.F("sourceReference", dap.OptionalOf[dap.Integer](), func(s *Source) any { return &s.SourceReference }),
	dap.F("adapterData", dap.OptionalOf[dap.Any](), func(s *Source) any { return &s.AdapterData }),
)

// ExceptionBreakpointsFilter is an exception filter option advertised in the
// initialize response capabilities.
type ExceptionBreakpointsFilter struct {
	Filter  dap.String
	Label   dap.String
	Default dap.Optional[dap.Boolean]
}

// ExceptionBreakpointsFilterType is the descriptor for
// ExceptionBreakpointsFilter.
var ExceptionBreakpointsFilterType = dap.RegisterStruct[ExceptionBreakpointsFilter]("exceptionBreakpointsFilter",
	dap.F("filter", dap.StringType(), func(f *ExceptionBreakpointsFilter) any { return &f.Filter }),
	dap.F("label", dap.StringType(), func(f *ExceptionBreakpointsFilter) any { return &f.Label }),
	dap.F("default", dap.OptionalOf[dap.Boolean](), func(f *ExceptionBreakpointsFilter) any { return &f.Default }),
)

// The element array must exist before the optional below references it.
var _ = dap.ArrayOf[ExceptionBreakpointsFilter]()

// Capabilities is the body of a successful initialize response.
type Capabilities struct {
	SupportsConfigurationDoneRequest dap.Optional[dap.Boolean]
	SupportsFunctionBreakpoints      dap.Optional[dap.Boolean]
	SupportsConditionalBreakpoints   dap.Optional[dap.Boolean]
	SupportsTerminateRequest         dap.Optional[dap.Boolean]
	ExceptionBreakpointFilters       dap.Optional[[]ExceptionBreakpointsFilter]
}

// CapabilitiesType is the descriptor of the initialize response body.
var CapabilitiesType = dap.RegisterResponse[Capabilities]("initialize",
	dap.F("supportsConfigurationDoneRequest", dap.OptionalOf[dap.Boolean](), func(c *Capabilities) any { return &c.SupportsConfigurationDoneRequest }),
	dap.F("supportsFunctionBreakpoints", dap.OptionalOf[dap.Boolean](), func(c *Capabilities) any { return &c.SupportsFunctionBreakpoints }),
	dap.F("supportsConditionalBreakpoints", dap.OptionalOf[dap.Boolean](), func(c *Capabilities) any { return &c.SupportsConditionalBreakpoints }),
	dap.F("supportsTerminateRequest", dap.OptionalOf[dap.Boolean](), func(c *Capabilities) any { return &c.SupportsTerminateRequest }),
	dap.F("exceptionBreakpointFilters", dap.OptionalOf[[]ExceptionBreakpointsFilter](), func(c *Capabilities) any { return &c.ExceptionBreakpointFilters }),
)

// InitializeArguments is the argument payload of the initialize request.
type InitializeArguments struct {
	ClientID        dap.Optional[dap.String]
	ClientName      dap.Optional[dap.String]
	AdapterID       dap.String
	Locale          dap.Optional[dap.String]
	LinesStartAt1   dap.Optional[dap.Boolean]
	ColumnsStartAt1 dap.Optional[dap.Boolean]
	PathFormat      dap.Optional[dap.String]
}

// InitializeType is the descriptor of the initialize request.
var InitializeType = dap.RegisterRequest[InitializeArguments]("initialize", CapabilitiesType,
	dap.F("clientID", dap.OptionalOf[dap.String](), func(a *InitializeArguments) any { return &a.ClientID }),
	dap.F("clientName", dap.OptionalOf[dap.String](), func(a *InitializeArguments) any { return &a.ClientName }),
	dap.F("adapterID", dap.StringType(), func(a *InitializeArguments) any { return &a.AdapterID }),
	dap.F("locale", dap.OptionalOf[dap.String](), func(a *InitializeArguments) any { return &a.Locale }),
	dap.F("linesStartAt1", dap.OptionalOf[dap.Boolean](), func(a *InitializeArguments) any { return &a.LinesStartAt1 }),
	dap.F("columnsStartAt1", dap.OptionalOf[dap.Boolean](), func(a *InitializeArguments) any { return &a.ColumnsStartAt1 }),
	dap.F("pathFormat", dap.OptionalOf[dap.String](), func(a *InitializeArguments) any { return &a.PathFormat }),
)

// DisconnectResult is the (empty) body of a successful disconnect response.
type DisconnectResult struct{}

// DisconnectResultType is the descriptor of the disconnect response body.
var DisconnectResultType = dap.RegisterResponse[DisconnectResult]("disconnect")

// DisconnectArguments is the argument payload of the disconnect request.
type DisconnectArguments struct {
	Restart           dap.Optional[dap.Boolean]
	TerminateDebuggee dap.Optional[dap.Boolean]
}

// DisconnectType is the descriptor of the disconnect request.
var DisconnectType = dap.RegisterRequest[DisconnectArguments]("disconnect", DisconnectResultType,
	dap.F("restart", dap.OptionalOf[dap.Boolean](), func(a *DisconnectArguments) any { return &a.Restart }),
	dap.F("terminateDebuggee", dap.OptionalOf[dap.Boolean](), func(a *DisconnectArguments) any { return &a.TerminateDebuggee }),
)

// LaunchResult is the (empty) body of a successful launch response.
type LaunchResult struct{}

// LaunchResultType is the descriptor of the launch response body.
var LaunchResultType = dap.RegisterResponse[LaunchResult]("launch")

// LaunchArguments is the argument payload of the launch request. Launch
// configuration beyond these fields is adapter specific, so unknown members
// are ignored on decode.
type LaunchArguments struct {
	NoDebug dap.Optional[dap.Boolean]
	Restart dap.Optional[dap.Any]
}

// LaunchType is the descriptor of the launch request.
var LaunchType = dap.RegisterRequest[LaunchArguments]("launch", LaunchResultType,
	dap.F("noDebug", dap.OptionalOf[dap.Boolean](), func(a *LaunchArguments) any { return &a.NoDebug }),
	dap.F("__restart", dap.OptionalOf[dap.Any](), func(a *LaunchArguments) any { return &a.Restart }),
)

// TerminateResult is the (empty) body of a successful terminate response.
type TerminateResult struct{}

// TerminateResultType is the descriptor of the terminate response body.
var TerminateResultType = dap.RegisterResponse[TerminateResult]("terminate")

// TerminateArguments is the argument payload of the terminate request.
type TerminateArguments struct {
	Restart dap.Optional[dap.Boolean]
}

// TerminateType is the descriptor of the terminate request.
var TerminateType = dap.RegisterRequest[TerminateArguments]("terminate", TerminateResultType,
	dap.F("restart", dap.OptionalOf[dap.Boolean](), func(a *TerminateArguments) any { return &a.Restart }),
)

// OutputEvent tells the client that the debuggee has produced output.
type OutputEvent struct {
	Category           dap.Optional[dap.String]
	Output             dap.String
	VariablesReference dap.Optional[dap.Integer]
	Source             dap.Optional[Source]
	Line               dap.Optional[dap.Integer]
	Column             dap.Optional[dap.Integer]
	Data               dap.Optional[dap.Any]
}

// OutputEventType is the descriptor of the output event.
var OutputEventType = dap.RegisterEvent[OutputEvent]("output",
	dap.F("category", dap.OptionalOf[dap.String](), func(e *OutputEvent) any { return &e.Category }),
	dap.F("output", dap.StringType(), func(e *OutputEvent) any { return &e.Output }),
	dap.F("variablesReference", dap.OptionalOf[dap.Integer](), func(e *OutputEvent) any { return &e.VariablesReference }),
	dap.F("source", dap.OptionalOf[Source](), func(e *OutputEvent) any { return &e.Source }),
	dap.F("line", dap.OptionalOf[dap.Integer](), func(e *OutputEvent) any { return &e.Line }),
	dap.F("column", dap.OptionalOf[dap.Integer](), func(e *OutputEvent) any { return &e.Column }),
	dap.F("data", dap.OptionalOf[dap.Any](), func(e *OutputEvent) any { return &e.Data }),
)

// StoppedEvent tells the client that execution stopped.
type StoppedEvent struct {
	Reason            dap.String
	Description       dap.Optional[dap.String]
	ThreadID          dap.Optional[dap.Integer]
	AllThreadsStopped dap.Optional[dap.Boolean]
	HitBreakpointIDs  dap.Optional[[]dap.Integer]
}

// The element array must exist before the optional below references it.
var _ = dap.ArrayOf[dap.Integer]()

// StoppedEventType is the descriptor of the stopped event.
var StoppedEventType = dap.RegisterEvent[StoppedEvent]("stopped",
	dap.F("reason", dap.StringType(), func(e *StoppedEvent) any { return &e.Reason }),
	dap.F("description", dap.OptionalOf[dap.String](), func(e *StoppedEvent) any { return &e.Description }),
	dap.F("threadId", dap.OptionalOf[dap.Integer](), func(e *StoppedEvent) any { return &e.ThreadID }),
	dap.F("allThreadsStopped", dap.OptionalOf[dap.Boolean](), func(e *StoppedEvent) any { return &e.AllThreadsStopped }),
	dap.F("hitBreakpointIds", dap.OptionalOf[[]dap.Integer](), func(e *StoppedEvent) any { return &e.HitBreakpointIDs }),
)

// ExitedEvent tells the client that the debuggee exited.
type ExitedEvent struct {
	ExitCode dap.Integer
}

// ExitedEventType is the descriptor of the exited event.
var ExitedEventType = dap.RegisterEvent[ExitedEvent]("exited",
	dap.F("exitCode", dap.IntegerType(), func(e *ExitedEvent) any { return &e.ExitCode }),
)

// TerminatedEvent tells the client that the debug session ended.
type TerminatedEvent struct {
	Restart dap.Optional[dap.Any]
}

// TerminatedEventType is the descriptor of the terminated event.
var TerminatedEventType = dap.RegisterEvent[TerminatedEvent]("terminated",
	dap.F("restart", dap.OptionalOf[dap.Any](), func(e *TerminatedEvent) any { return &e.Restart }),
)
