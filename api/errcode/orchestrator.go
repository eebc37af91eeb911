package errcode

import "net/http"

// errGroup namespaces the orchestrator-level error codes from any group a
// future extension might register.
const errGroup = "cacheproxy.orchestrator"

var (
	// ErrorCodeBadRequest is returned when the manager tag is unknown, the
	// manifest is missing, or the version tuple is malformed.
	ErrorCodeBadRequest = Register(errGroup, ErrorDescriptor{
		Value:   "BAD_REQUEST",
		Message: "invalid request",
		Description: `The request's manager tag was unrecognized, its
		manifest content was empty, or its version tuple could not be
		parsed.`,
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeUnsupportedVersion is returned when the version policy
	// rejects the requested tuple and no isolation fallback applies.
	ErrorCodeUnsupportedVersion = Register(errGroup, ErrorDescriptor{
		Value:   "UNSUPPORTED_VERSION",
		Message: "requested manager/runtime version is not supported",
		Description: `The version policy rejected the request's version
		tuple, and either isolation-on-mismatch is disabled or no isolation
		capability is available to run it.`,
		HTTPStatusCode: http.StatusUnprocessableEntity,
	})

	// ErrorCodeInstallFailure is returned when the installer ran but
	// reported failure.
	ErrorCodeInstallFailure = Register(errGroup, ErrorDescriptor{
		Value:   "INSTALL_FAILURE",
		Message: "dependency install failed",
		Description: `The installer (native or isolated) ran to completion
		but reported success=false. The installer's own diagnostic message
		is carried as Detail.`,
		HTTPStatusCode: http.StatusUnprocessableEntity,
	})

	// ErrorCodeInstallerFault is returned when the installer itself could
	// not run to completion (its binary is missing, or its output tree
	// could not be read back), as distinct from the installer running and
	// reporting a normal failure (ErrorCodeInstallFailure).
	ErrorCodeInstallerFault = Register(errGroup, ErrorDescriptor{
		Value:   "INSTALLER_FAULT",
		Message: "installer environment failed",
		Description: `The resolved Installer could not run to completion:
		its binary was missing or unusable, or its output tree could not
		be read back after running. This is an environment fault, not a
		rejection of the dependency set itself.`,
		HTTPStatusCode: http.StatusBadGateway,
	})

	// ErrorCodeStorageFault is returned for any blob, index, or archive
	// I/O error.
	ErrorCodeStorageFault = Register(errGroup, ErrorDescriptor{
		Value:   "STORAGE_FAULT",
		Message: "cache storage operation failed",
		Description: `A read or write against the blob store, index store,
		or bundle archiver failed. Because all writes use the
		temp-file-then-rename discipline, no partially written state is
		observable as a result.`,
		HTTPStatusCode: http.StatusInternalServerError,
	})

	// ErrorCodeNotFound is returned when a download is requested for a
	// bundle id with no archive on disk.
	ErrorCodeNotFound = Register(errGroup, ErrorDescriptor{
		Value:          "NOT_FOUND",
		Message:        "bundle not found",
		Description:    `No archive exists for the requested bundle id.`,
		HTTPStatusCode: http.StatusNotFound,
	})
)
