// Command kalyna encrypts, decrypts, wraps and authenticates data with the Kalyna block cipher.
//
//	kalyna encrypt -mode gcm -key 000102... -in plain.txt -out sealed.bin
//	kalyna decrypt -mode gcm -key 000102... -in sealed.bin
//	kalyna wrap -bs 256 -pass hunter2 -salt pepper -in key.bin
//	kalyna mac -key 000102... -in message.txt
//
// Defaults for -key, -bs and -mode are read from KALYNA_KEY, KALYNA_BLOCK_SIZE and KALYNA_MODE, in the
// process environment or in the dotenv file named by -env.
package main

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"golang.org/x/crypto/argon2"

	"github.com/codahale/kalyna"
	"github.com/codahale/kalyna/ccm"
	"github.com/codahale/kalyna/cmac"
	"github.com/codahale/kalyna/ctr"
	"github.com/codahale/kalyna/gcm"
	"github.com/codahale/kalyna/kw"
	"github.com/codahale/kalyna/xts"
)

func main() {
	log := slog.New(slog.Default().Handler())

	if err := run(afero.NewOsFs(), os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Error("failed", "err", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: kalyna <encrypt|decrypt|wrap|unwrap|mac> [flags]")

type config struct {
	blockSize  int
	keySize    int
	key        string
	pass, salt string
	mode       string
	iv         string
	aad        string
	tagSize    int
	in, out    string
	envFile    string
	verbose    bool
}

func run(fsys afero.Fs, args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command := args[0]

	cfg, err := parseFlags(fsys, command, args[1:], getenv, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	b, err := newBlock(cfg)
	if err != nil {
		return err
	}
	log.Debug("cipher ready", "block_bits", cfg.blockSize, "key_bits", cfg.keySize, "command", command)

	input, err := readInput(fsys, cfg.in, stdin)
	if err != nil {
		return err
	}

	var output []byte
	switch command {
	case "encrypt":
		output, err = encrypt(b, cfg, input)
	case "decrypt":
		output, err = decrypt(b, cfg, input)
	case "wrap":
		output, err = kw.Wrap(b, input)
	case "unwrap":
		output, err = kw.Unwrap(b, input)
	case "mac":
		var tag []byte
		tag, err = cmac.Sum(b, input, tagSizeOr(cfg, b.BlockSize()))
		output = []byte(hex.EncodeToString(tag) + "\n")
	default:
		return errUsage
	}
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	log.Debug("processed", "command", command, "mode", cfg.mode, "in", len(input), "out", len(output))

	return writeOutput(fsys, cfg.out, stdout, output)
}

func parseFlags(fsys afero.Fs, command string, args []string, getenv func(string) string, stderr io.Writer) (*config, error) {
	cfg := new(config)
	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cfg.envFile, "env", ".env", "dotenv file with KALYNA_* defaults")
	flags.IntVar(&cfg.blockSize, "bs", 0, "block size in bits: 128, 256 or 512 (default 128)")
	flags.IntVar(&cfg.keySize, "key-size", 0, "key size in bits when deriving from -pass (default: block size)")
	flags.StringVar(&cfg.key, "key", "", "hex-encoded key")
	flags.StringVar(&cfg.pass, "pass", "", "passphrase to derive the key from with Argon2id")
	flags.StringVar(&cfg.salt, "salt", "", "salt for -pass")
	flags.StringVar(&cfg.mode, "mode", "", "encryption mode: gcm, ccm, xts or ctr (default gcm)")
	flags.StringVar(&cfg.iv, "iv", "", "hex-encoded IV or nonce (random and prepended when encrypting)")
	flags.StringVar(&cfg.aad, "aad", "", "additional authenticated data for gcm and ccm")
	flags.IntVar(&cfg.tagSize, "tag", 0, "tag size in bytes (default 16 for gcm and ccm, block size for mac)")
	flags.StringVar(&cfg.in, "in", "-", "input file, or - for stdin")
	flags.StringVar(&cfg.out, "out", "-", "output file, or - for stdout")
	flags.BoolVar(&cfg.verbose, "v", false, "log debug output")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	env, err := loadEnv(fsys, cfg.envFile, getenv)
	if err != nil {
		return nil, err
	}

	if cfg.key == "" {
		cfg.key = env("KALYNA_KEY")
	}
	if cfg.mode == "" {
		cfg.mode = env("KALYNA_MODE")
	}
	if cfg.mode == "" {
		cfg.mode = "gcm"
	}
	if cfg.blockSize == 0 {
		if v := env("KALYNA_BLOCK_SIZE"); v != "" {
			if cfg.blockSize, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("invalid KALYNA_BLOCK_SIZE %q: %w", v, err)
			}
		}
	}
	if cfg.blockSize == 0 {
		cfg.blockSize = 128
	}
	return cfg, nil
}

// loadEnv returns a lookup over the dotenv file at path, falling back to getenv. A missing file is
// not an error.
func loadEnv(fsys afero.Fs, path string, getenv func(string) string) (func(string) string, error) {
	f, err := fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return getenv, nil
	} else if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("invalid env file %s: %w", path, err)
	}
	return func(k string) string {
		if v, ok := vars[k]; ok {
			return v
		}
		return getenv(k)
	}, nil
}

func newBlock(cfg *config) (*kalyna.Cipher, error) {
	var key []byte
	switch {
	case cfg.key != "" && cfg.pass != "":
		return nil, errors.New("-key and -pass are mutually exclusive")
	case cfg.key != "":
		var err error
		if key, err = hex.DecodeString(cfg.key); err != nil {
			return nil, fmt.Errorf("invalid key: %w", err)
		}
	case cfg.pass != "":
		if cfg.salt == "" {
			return nil, errors.New("-pass requires -salt")
		}
		keyBits := cfg.keySize
		if keyBits == 0 {
			keyBits = cfg.blockSize
		}
		key = argon2.IDKey([]byte(cfg.pass), []byte(cfg.salt), 1, 64*1024, 4, uint32(keyBits/8))
	default:
		return nil, errors.New("a key is required: use -key, -pass or KALYNA_KEY")
	}
	return kalyna.NewCipher(cfg.blockSize/8, key)
}

func tagSizeOr(cfg *config, def int) int {
	if cfg.tagSize != 0 {
		return cfg.tagSize
	}
	return def
}

func newAEAD(b cipher.Block, cfg *config) (cipher.AEAD, error) {
	switch cfg.mode {
	case "gcm":
		return gcm.New(b, tagSizeOr(cfg, 16))
	case "ccm":
		return ccm.New(b, tagSizeOr(cfg, 16), ccm.DefaultLengthSize)
	default:
		return nil, fmt.Errorf("%q is not an AEAD mode", cfg.mode)
	}
}

func isAEAD(mode string) bool {
	return mode == "gcm" || mode == "ccm"
}

func encrypt(b cipher.Block, cfg *config, plaintext []byte) ([]byte, error) {
	bs := b.BlockSize()
	iv, err := decodeIV(cfg.iv, bs)
	if err != nil {
		return nil, err
	}
	prefix := iv == nil
	if prefix {
		iv = make([]byte, bs)
		_, _ = rand.Read(iv)
	}

	var out []byte
	if prefix {
		out = append(out, iv...)
	}

	if isAEAD(cfg.mode) {
		aead, err := newAEAD(b, cfg)
		if err != nil {
			return nil, err
		}
		return aead.Seal(out, iv, plaintext, []byte(cfg.aad)), nil
	}

	ct := make([]byte, len(plaintext))
	switch cfg.mode {
	case "ctr":
		if err := ctr.XORKeyStream(b, iv, ct, plaintext); err != nil {
			return nil, err
		}
	case "xts":
		x, err := xts.New(b, bs)
		if err != nil {
			return nil, err
		}
		if err := x.Encrypt(ct, plaintext, iv); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.mode)
	}
	return append(out, ct...), nil
}

func decrypt(b cipher.Block, cfg *config, input []byte) ([]byte, error) {
	bs := b.BlockSize()
	iv, err := decodeIV(cfg.iv, bs)
	if err != nil {
		return nil, err
	}
	if iv == nil {
		if len(input) < bs {
			return nil, errors.New("input too short to hold an IV")
		}
		iv, input = input[:bs], input[bs:]
	}

	if isAEAD(cfg.mode) {
		aead, err := newAEAD(b, cfg)
		if err != nil {
			return nil, err
		}
		return aead.Open(nil, iv, input, []byte(cfg.aad))
	}

	pt := make([]byte, len(input))
	switch cfg.mode {
	case "ctr":
		if err := ctr.XORKeyStream(b, iv, pt, input); err != nil {
			return nil, err
		}
	case "xts":
		x, err := xts.New(b, bs)
		if err != nil {
			return nil, err
		}
		if err := x.Decrypt(pt, input, iv); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.mode)
	}
	return pt, nil
}

// decodeIV returns nil when no IV was given.
func decodeIV(s string, bs int) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	iv, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid iv: %w", err)
	}
	if len(iv) != bs {
		return nil, kalyna.ErrInvalidIVLength
	}
	return iv, nil
}

func readInput(fsys afero.Fs, path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return afero.ReadFile(fsys, path)
}

func writeOutput(fsys afero.Fs, path string, stdout io.Writer, data []byte) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return afero.WriteFile(fsys, path, data, 0o600)
}
