// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package ftppot implements the FTP deception service.

The control channel speaks enough of RFC 959 to satisfy common FTP clients
and attack tools: authentication (any password works), directory navigation
over a small fake tree, passive-mode transfers, and write commands that
pretend to succeed or fail the way a locked-down vsFTPd would. Downloads
return fabricated bait content keyed off the requested filename; uploads are
acknowledged and discarded.
*/
package ftppot
