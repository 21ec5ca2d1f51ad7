// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package detect classifies HTTP request artifacts into threat-type labels.

The matcher is pure and stateless: identical inputs always produce identical
labels. Classification runs in three stages, in order:

 1. Ordered pattern families (sql_injection, xss, path_traversal,
    command_injection, lfi_rfi) over the case-folded concatenation of path,
    query, and the first 1000 characters of the body. The first matching
    family wins.
 2. Sensitive path prefixes (/wp-admin, /.env, /phpmyadmin, ...) yield
    reconnaissance.
 3. Known scanner substrings in the User-Agent header yield scanner.

Anything else is a probe.
*/
package detect
