// cmd/version.go
package cmd

// Version is printed by --version. Release builds stamp it with
// -ldflags "-X github.com/xkilldash9x/marketcheck/cmd.Version=<tag>".
var Version = "dev"
