// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keystore

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// Set SUPPLYCHAIN_ALLOW_INSECURE_KEY_PERMS=true to skip the ACL check on
// development machines where key files live on shares without ACLs.
const envAllowInsecureKeyPerms = "SUPPLYCHAIN_ALLOW_INSECURE_KEY_PERMS"

// groupSIDs maps SDDL abbreviations and SID strings of broad groups to
// display names. None of them may be granted access to a key file.
var groupSIDs = map[string]string{
	"WD":           "Everyone",
	"S-1-1-0":      "Everyone",
	"BU":           "BUILTIN\\Users",
	"S-1-5-32-545": "BUILTIN\\Users",
	"AU":           "Authenticated Users",
	"S-1-5-11":     "Authenticated Users",
}

// checkOpenFilePermissions checks the DACL of an open key file. NTFS does
// not let an open file be replaced, so checking by name is safe here.
func checkOpenFilePermissions(f *os.File) error {
	if strings.EqualFold(os.Getenv(envAllowInsecureKeyPerms), "true") {
		slog.Warn(
			"key file ACL check bypassed",
			"component", "keystore",
			"path", f.Name(),
			"env_var", envAllowInsecureKeyPerms,
		)
		return nil
	}
	return checkFilePermissions(f.Name())
}

// checkFilePermissions reads the file's DACL as SDDL. The unsafe package
// is avoided because of go.dev/issue/73199, so the descriptor is not freed.
func checkFilePermissions(path string) error {
	sd, err := windows.GetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		return fmt.Errorf("failed to get security info for %q: %w", path, err)
	}
	sddl := sd.String()
	if sddl == "" {
		return fmt.Errorf("failed to read security descriptor for %q", path)
	}
	return checkSDDL(path, sddl)
}

// checkSDDL fails when an allow ACE in the DACL names a broad group
func checkSDDL(path, sddl string) error {
	idx := strings.Index(sddl, "D:")
	if idx < 0 {
		return fmt.Errorf(
			"key file %q has no DACL (unrestricted access): %w",
			path,
			ErrInsecureFileMode,
		)
	}
	dacl := sddl[idx+2:]
	if end := strings.Index(dacl, "S:"); end >= 0 {
		dacl = dacl[:end]
	}
	for {
		start := strings.IndexByte(dacl, '(')
		if start < 0 {
			return nil
		}
		end := strings.IndexByte(dacl[start:], ')')
		if end < 0 {
			return nil
		}
		// type;flags;rights;object;inherit;trustee
		fields := strings.Split(dacl[start+1:start+end], ";")
		dacl = dacl[start+end+1:]
		if len(fields) < 6 || fields[0] != "A" {
			continue
		}
		if name, ok := groupSIDs[fields[5]]; ok {
			return fmt.Errorf(
				"key file %q grants access to %s: %w",
				path,
				name,
				ErrInsecureFileMode,
			)
		}
	}
}

// restrictKeyFile replaces the inherited DACL of a new key file with one
// that grants access to the current user only
func restrictKeyFile(path string) error {
	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_QUERY, &token); err != nil {
		return fmt.Errorf("open process token: %w", err)
	}
	defer token.Close()
	user, err := token.GetTokenUser()
	if err != nil {
		return fmt.Errorf("read token user: %w", err)
	}
	sd, err := windows.SecurityDescriptorFromString(
		fmt.Sprintf("D:P(A;;GA;;;%s)", user.User.Sid.String()),
	)
	if err != nil {
		return fmt.Errorf("build key file ACL: %w", err)
	}
	dacl, _, err := sd.DACL()
	if err != nil {
		return fmt.Errorf("build key file ACL: %w", err)
	}
	err = windows.SetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION|windows.PROTECTED_DACL_SECURITY_INFORMATION,
		nil, nil, dacl, nil,
	)
	if err != nil {
		return fmt.Errorf("failed to restrict key file %q: %w", path, err)
	}
	return nil
}
