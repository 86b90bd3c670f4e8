package inspect

import (
	"path"
	"strings"

	"github.com/viant/overseer/model/checkpoint"
)

// deployTools maps a command name to the subcommands that deploy. An empty
// list means any invocation deploys.
var deployTools = map[string][]string{
	"kubectl":    {"apply", "rollout", "set", "scale", "delete"},
	"helm":       {"install", "upgrade", "rollback", "uninstall"},
	"terraform":  {"apply", "destroy"},
	"pulumi":     {"up", "destroy"},
	"flyctl":     {"deploy"},
	"fly":        {"deploy"},
	"vercel":     {"deploy", "--prod"},
	"netlify":    {"deploy"},
	"heroku":     {"releases:rollback", "container:release"},
	"gcloud":     {"deploy"},
	"cdk":        {"deploy", "destroy"},
	"serverless": {"deploy"},
	"sls":        {"deploy"},
	"ansible":    nil,
}

var migrateTools = map[string][]string{
	"alembic":   {"upgrade", "downgrade"},
	"prisma":    {"migrate", "db"},
	"migrate":   nil,
	"flyway":    {"migrate", "clean", "repair"},
	"liquibase": {"update", "rollback"},
	"rails":     {"db:migrate", "db:rollback", "db:schema:load"},
	"rake":      {"db:migrate", "db:rollback", "db:schema:load"},
	"goose":     {"up", "down", "reset"},
	"atlas":     {"migrate", "schema"},
}

// Command classifies a shell command line into checkpoint kinds. Pipelines
// and command lists are inspected segment by segment.
func Command(line string) []checkpoint.Kind {
	var kinds []checkpoint.Kind
	seen := map[checkpoint.Kind]bool{}
	add := func(kind checkpoint.Kind) {
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	for _, segment := range segments(line) {
		args := strings.Fields(segment)
		args = stripPrefix(args)
		if len(args) == 0 {
			continue
		}
		name := path.Base(args[0])
		rest := args[1:]
		switch {
		case name == "git" && gitSubcommand(rest) == "push":
			add(checkpoint.KindGitPush)
		case name == "git" && gitSubcommand(rest) == "rm":
			add(checkpoint.KindFileDelete)
		case name == "rm" || name == "unlink" || name == "rmdir" || name == "shred":
			add(checkpoint.KindFileDelete)
		case matches(deployTools, name, rest) || isDeployScript(name, rest):
			add(checkpoint.KindDeploy)
		case matches(migrateTools, name, rest):
			add(checkpoint.KindSchemaChange)
		}
	}
	return kinds
}

func segments(line string) []string {
	replacer := strings.NewReplacer("&&", "\n", "||", "\n", ";", "\n", "|", "\n")
	return strings.Split(replacer.Replace(line), "\n")
}

// stripPrefix drops env assignments and wrappers such as sudo.
func stripPrefix(args []string) []string {
	for len(args) > 0 {
		switch {
		case strings.Contains(args[0], "=") && !strings.HasPrefix(args[0], "-"):
			args = args[1:]
		case args[0] == "sudo" || args[0] == "env" || args[0] == "time" || args[0] == "nohup" || args[0] == "exec" || args[0] == "npx":
			args = args[1:]
		default:
			return args
		}
	}
	return args
}

// gitSubcommand skips global options such as -C dir or -c key=value.
func gitSubcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-C" || arg == "-c" || arg == "--git-dir" || arg == "--work-tree":
			i++
		case strings.HasPrefix(arg, "-"):
		default:
			return arg
		}
	}
	return ""
}

func matches(tools map[string][]string, name string, args []string) bool {
	subcommands, ok := tools[name]
	if !ok {
		return false
	}
	if len(subcommands) == 0 {
		return true
	}
	for _, arg := range args {
		for _, candidate := range subcommands {
			if arg == candidate {
				return true
			}
		}
	}
	return false
}

// isDeployScript detects make/npm style targets named deploy or release.
func isDeployScript(name string, args []string) bool {
	if strings.Contains(name, "deploy") {
		return true
	}
	switch name {
	case "make", "npm", "yarn", "pnpm", "task", "just":
		for _, arg := range args {
			if arg == "deploy" || arg == "release" || strings.HasPrefix(arg, "deploy:") {
				return true
			}
		}
	}
	return false
}
