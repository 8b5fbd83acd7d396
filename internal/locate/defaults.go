package locate

// Dependency names known to the built-in package profiles.
const (
	OpenSSL = "openssl"
	ICU     = "icu"
	Ncurses = "ncurses"
)

var unixLibDirs = []string{
	"lib/x86_64-linux-gnu",
	"lib/aarch64-linux-gnu",
	"lib64",
	"lib",
}

var windowsVcpkg = "${VCPKG_ROOT}/installed/x64-windows"

// DefaultSpecs returns the built-in probe lists for goos. Tool-manager
// locations come before system locations.
func DefaultSpecs(goos string) []Spec {
	switch goos {
	case "windows":
		return []Spec{
			{
				Name: OpenSSL,
				Roots: []string{
					"${OPENSSL_ROOT_DIR}",
					windowsVcpkg,
					`C:\Program Files\OpenSSL-Win64`,
					`C:\Program Files\OpenSSL`,
					`C:\OpenSSL-Win64`,
					`C:\OpenSSL`,
				},
				LibDirs: []string{"lib/VC/x64/MD", "lib/VC", "lib"},
				Markers: []string{"libssl.lib", "ssleay32.lib"},
				Relocate: []Relocation{{
					Toolchain: "msvc",
					Files:     []string{"lib/libssl.lib", "lib/libcrypto.lib"},
					To:        "lib/VC",
				}},
			},
			{
				Name: ICU,
				Roots: []string{
					"${ICU_ROOT}",
					windowsVcpkg,
					`C:\icu`,
					`C:\Program Files\icu`,
				},
				LibDirs: []string{"lib64", "lib"},
				Markers: []string{"icuuc*.lib"},
			},
			{
				Name:    Ncurses,
				Roots:   []string{windowsVcpkg},
				Markers: []string{"ncurses*.lib"},
			},
		}
	case "darwin":
		return []Spec{
			{
				Name: OpenSSL,
				PrefixCommands: [][]string{
					{"brew", "--prefix", "openssl@3"},
					{"brew", "--prefix", "openssl"},
				},
				Roots: []string{
					"${OPENSSL_ROOT_DIR}",
					"/opt/homebrew/opt/openssl@3",
					"/usr/local/opt/openssl@3",
					"/opt/local",
				},
				Markers: []string{"libssl.dylib", "libssl.*.dylib", "libssl.a"},
			},
			{
				Name:           ICU,
				PrefixCommands: [][]string{{"brew", "--prefix", "icu4c"}},
				Roots: []string{
					"${ICU_ROOT}",
					"/opt/homebrew/opt/icu4c",
					"/usr/local/opt/icu4c",
					"/opt/local",
				},
				Markers: []string{"libicuuc*.dylib", "libicuuc.a"},
			},
			{
				Name:           Ncurses,
				PrefixCommands: [][]string{{"brew", "--prefix", "ncurses"}},
				Roots: []string{
					"/opt/homebrew/opt/ncurses",
					"/usr/local/opt/ncurses",
					"/opt/local",
				},
				Markers: []string{"libncursesw*.dylib", "libncurses*.dylib", "libncurses.a"},
			},
		}
	default:
		return []Spec{
			{
				Name:    OpenSSL,
				Roots:   []string{"${OPENSSL_ROOT_DIR}", "/usr/local/ssl", "/usr/local", "/usr"},
				LibDirs: unixLibDirs,
				Markers: []string{"libssl.so", "libssl.so.*", "libssl.a"},
			},
			{
				Name:    ICU,
				Roots:   []string{"${ICU_ROOT}", "/usr/local", "/usr"},
				LibDirs: unixLibDirs,
				Markers: []string{"libicuuc.so", "libicuuc.so.*", "libicuuc.a"},
			},
			{
				Name:    Ncurses,
				Roots:   []string{"/usr/local", "/usr"},
				LibDirs: unixLibDirs,
				Markers: []string{"libncursesw.so*", "libncurses.so*", "libncurses.a"},
			},
		}
	}
}

// Merge overlays specs over base: an entry with the same name replaces the
// base entry, new names are appended.
func Merge(base, specs []Spec) []Spec {
	out := append([]Spec(nil), base...)
	for _, s := range specs {
		replaced := false
		for i := range out {
			if out[i].Name == s.Name {
				out[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, s)
		}
	}
	return out
}
