package build

// Version is stamped at build time via
// -ldflags "-X github.com/chernistry/tavily/internal/build.Version=v1.2.3".
var Version = "dev"
