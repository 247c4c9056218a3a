package doctor

import (
	"context"
	"regexp"
	"strings"

	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
)

var defaultVersionRegex = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:-[a-zA-Z0-9]+)?)`)

// checkTool checks if a tool is installed and gets its version.
func checkTool(ctx context.Context, exec hostexec.Executor, id, name, desc string, versionArgs []string, versionRegex *regexp.Regexp) Check {
	check := Check{
		ID:          id,
		Name:        name,
		Description: desc,
		FixCommand:  GetFixCommand(id),
	}

	path, err := exec.LookPath(id)
	if err != nil {
		check.Status = StatusMissing
		check.Message = "not installed"
		return check
	}

	// Try to get version
	output, err := exec.Run(ctx, hostexec.Command{Name: path, Args: versionArgs})
	if err != nil {
		// Tool exists but version check failed - still consider it OK
		check.Status = StatusOK
		check.Message = "installed (version unknown)"
		return check
	}

	check.Status = StatusOK
	if version := extractVersion(output, versionRegex); version != "" {
		check.Message = version
	} else {
		check.Message = "installed"
	}
	return check
}

// extractVersion extracts version string from command output.
func extractVersion(output string, regex *regexp.Regexp) string {
	if regex == nil {
		regex = defaultVersionRegex
	}
	matches := regex.FindStringSubmatch(output)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// CheckAptGet checks if apt-get is installed.
func CheckAptGet(ctx context.Context, exec hostexec.Executor) Check {
	return checkTool(ctx, exec, IDAptGet, "apt-get", "Debian package installer",
		[]string{"--version"}, regexp.MustCompile(`apt (\d+\.\d+(?:\.\d+)?)`))
}

// CheckDpkg checks if dpkg is installed.
func CheckDpkg(ctx context.Context, exec hostexec.Executor) Check {
	return checkTool(ctx, exec, IDDpkg, "dpkg", "Installs the prebuilt .deb artifacts",
		[]string{"--version"}, regexp.MustCompile(`version (\d+\.\d+(?:\.\d+)?)`))
}

// CheckDpkgQuery checks if dpkg-query is installed.
func CheckDpkgQuery(ctx context.Context, exec hostexec.Executor) Check {
	return checkTool(ctx, exec, IDDpkgQuery, "dpkg-query", "Reports which packages are installed",
		[]string{"--version"}, regexp.MustCompile(`version (\d+\.\d+(?:\.\d+)?)`))
}

// CheckMake checks if make is installed.
func CheckMake(ctx context.Context, exec hostexec.Executor) Check {
	return checkTool(ctx, exec, IDMake, "make", "Drives source builds",
		[]string{"--version"}, regexp.MustCompile(`GNU Make (\d+\.\d+(?:\.\d+)?)`))
}

// CheckGCC checks if gcc is installed.
func CheckGCC(ctx context.Context, exec hostexec.Executor) Check {
	return checkTool(ctx, exec, IDGCC, "gcc", "C compiler for source builds",
		[]string{"--version"}, regexp.MustCompile(`\) (\d+\.\d+(?:\.\d+)?)`))
}

// CheckPip checks if the Python requirements installer is available.
// installer is the command the recipe uses, "pip" when empty.
func CheckPip(ctx context.Context, exec hostexec.Executor, installer string) Check {
	if installer == "" || installer == IDPip {
		return checkTool(ctx, exec, IDPip, "pip", "Python package installer",
			[]string{"--version"}, regexp.MustCompile(`pip (\d+\.\d+(?:\.\d+)?)`))
	}

	check := checkTool(ctx, exec, installer, installer, "Python package installer",
		[]string{"--version"}, regexp.MustCompile(`pip (\d+\.\d+(?:\.\d+)?)`))
	check.ID = IDPip
	check.FixCommand = GetFixCommand(IDPip)
	return check
}

// CheckInitSystem checks that services can be restarted with systemctl or
// the SysV service wrapper.
func CheckInitSystem(ctx context.Context, exec hostexec.Executor) Check {
	check := Check{
		ID:          IDInitSystem,
		Name:        "Service manager",
		Description: "Restarts services after configuration changes",
	}

	if path, err := exec.LookPath("systemctl"); err == nil {
		check.Status = StatusOK
		check.Message = "systemd"
		output, err := exec.Run(ctx, hostexec.Command{Name: path, Args: []string{"--version"}})
		if err == nil {
			if version := extractVersion(output, regexp.MustCompile(`systemd (\d+)`)); version != "" {
				check.Message = "systemd " + version
			}
		}
		return check
	}

	if _, err := exec.LookPath("service"); err == nil {
		check.Status = StatusWarning
		check.Message = "systemctl not found, using service"
		return check
	}

	check.Status = StatusMissing
	check.Message = "neither systemctl nor service found"
	return check
}

// CheckStateDir checks that the state directory exists.
func CheckStateDir(exec hostexec.Executor, dir string) Check {
	check := Check{
		ID:          IDStateDir,
		Name:        "State directory",
		Description: "Holds recorded artifact versions",
		FixCommand:  stateDirFix(dir),
	}

	if exec.FileExists(dir) {
		check.Status = StatusOK
		check.Message = dir
	} else {
		check.Status = StatusWarning
		check.Message = "will be created at " + dir
	}
	return check
}

func stateDirFix(dir string) *FixCommand {
	if dir == "" || strings.ContainsAny(dir, "'\n") {
		return nil
	}
	return &FixCommand{
		Description: "Create the state directory",
		Command:     "sudo mkdir -p '" + dir + "'",
		Sudo:        true,
	}
}
