// Package security provides at-rest encryption for API credentials and an
// append-only audit trail for trading actions.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"crypto-trader/internal/errors"
)

const (
	keySize    = 32
	saltSize   = 16
	nonceSize  = 12
	iterations = 100000

	vaultFile = "credentials.enc"
	plainFile = "credentials.toml"

	defaultSessionTTL = 8 * time.Hour
)

// Credentials holds the decrypted API keys the trader needs.
type Credentials struct {
	Exchange ExchangeCredentials `json:"exchange"`
	OpenAI   OpenAICredentials   `json:"openai"`
}

// ExchangeCredentials holds exchange API credentials.
type ExchangeCredentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// OpenAICredentials holds the OpenAI API key used for sentiment analysis.
type OpenAICredentials struct {
	APIKey string `json:"api_key"`
}

// envelope is the on-disk format of the encrypted vault.
type envelope struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Version    int    `json:"version"`
}

// Vault encrypts credentials with AES-256-GCM under a key derived from a
// passphrase via PBKDF2. The derived key is held in memory for the duration
// of a session and zeroed on Lock.
type Vault struct {
	dir        string
	key        []byte
	env        *envelope
	mu         sync.RWMutex
	unlockedAt time.Time
	ttl        time.Duration
}

// NewVault creates a vault rooted at dir. A zero ttl uses the default
// eight hour session.
func NewVault(dir string, ttl time.Duration) *Vault {
	if ttl == 0 {
		ttl = defaultSessionTTL
	}
	return &Vault{dir: dir, ttl: ttl}
}

// Unlock derives the encryption key from the passphrase and prepares the
// vault for use. On first run a plain credentials.toml, if present, is
// migrated into the encrypted vault and shredded; otherwise an empty vault
// is created.
func (v *Vault) Unlock(passphrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	encPath := filepath.Join(v.dir, vaultFile)
	if _, err := os.Stat(encPath); os.IsNotExist(err) {
		plainPath := filepath.Join(v.dir, plainFile)
		if _, err := os.Stat(plainPath); err == nil {
			return v.migrate(passphrase, plainPath, encPath)
		}
		return v.write(passphrase, &Credentials{}, encPath)
	}

	data, err := os.ReadFile(encPath)
	if err != nil {
		return errors.Wrap(err, "reading credential vault")
	}
	env := &envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return errors.Wrap(err, "parsing credential vault")
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return errors.Wrap(err, "decoding vault salt")
	}

	v.key = deriveKey(passphrase, salt)
	v.env = env
	v.unlockedAt = time.Now()

	// A wrong passphrase surfaces as a GCM authentication failure.
	if _, err := v.load(); err != nil {
		zero(v.key)
		v.key = nil
		return errors.ErrBadPassphrase
	}
	return nil
}

// Load returns the decrypted credentials for the current session.
func (v *Vault) Load() (*Credentials, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.load()
}

func (v *Vault) load() (*Credentials, error) {
	if v.key == nil || v.env == nil {
		return nil, errors.ErrVaultLocked
	}
	if time.Since(v.unlockedAt) > v.ttl {
		return nil, errors.ErrSessionExpired
	}

	nonce, err := base64.StdEncoding.DecodeString(v.env.Nonce)
	if err != nil {
		return nil, errors.Wrap(err, "decoding vault nonce")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(v.env.Ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "decoding vault ciphertext")
	}
	plaintext, err := open(ciphertext, v.key, nonce)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{}
	if err := json.Unmarshal(plaintext, creds); err != nil {
		return nil, errors.Wrap(err, "parsing credentials")
	}
	return creds, nil
}

// Store re-encrypts the given credentials under the session key and
// persists them.
func (v *Vault) Store(creds *Credentials) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil || v.env == nil {
		return errors.ErrVaultLocked
	}
	if time.Since(v.unlockedAt) > v.ttl {
		return errors.ErrSessionExpired
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "serializing credentials")
	}
	nonce, ciphertext, err := seal(plaintext, v.key)
	if err != nil {
		return err
	}
	v.env.Nonce = base64.StdEncoding.EncodeToString(nonce)
	v.env.Ciphertext = base64.StdEncoding.EncodeToString(ciphertext)
	return v.persist(filepath.Join(v.dir, vaultFile))
}

// Unlocked reports whether the vault holds a live session key.
func (v *Vault) Unlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key != nil && time.Since(v.unlockedAt) <= v.ttl
}

// Refresh extends the current session.
func (v *Vault) Refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.unlockedAt = time.Now()
}

// Lock zeroes the session key and forgets the loaded envelope.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	zero(v.key)
	v.key = nil
	v.env = nil
}

func (v *Vault) migrate(passphrase, plainPath, encPath string) error {
	data, err := os.ReadFile(plainPath)
	if err != nil {
		return errors.Wrap(err, "reading plain credentials")
	}
	creds := parsePlainCredentials(string(data))
	if err := v.write(passphrase, creds, encPath); err != nil {
		return err
	}
	return shred(plainPath)
}

func (v *Vault) write(passphrase string, creds *Credentials, path string) error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return errors.Wrap(err, "generating salt")
	}
	v.key = deriveKey(passphrase, salt)
	v.unlockedAt = time.Now()

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "serializing credentials")
	}
	nonce, ciphertext, err := seal(plaintext, v.key)
	if err != nil {
		return err
	}
	v.env = &envelope{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Version:    1,
	}
	return v.persist(path)
}

func (v *Vault) persist(path string) error {
	data, err := json.MarshalIndent(v.env, "", "  ")
	if err != nil {
		return errors.Wrap(err, "serializing vault")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "creating vault directory")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "writing vault")
	}
	return nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

func seal(plaintext, key []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating GCM")
	}
	nonce = make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, errors.Wrap(err, "generating nonce")
	}
	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

func open(ciphertext, key, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "creating GCM")
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting vault")
	}
	return plaintext, nil
}

// parsePlainCredentials reads the minimal TOML subset the plain credentials
// file uses: [section] headers and key = "value" pairs.
func parsePlainCredentials(content string) *Credentials {
	creds := &Credentials{}
	section := ""
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.Trim(line, "[]")
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")
		switch section {
		case "exchange":
			switch key {
			case "api_key":
				creds.Exchange.APIKey = value
			case "api_secret":
				creds.Exchange.APISecret = value
			}
		case "openai":
			if key == "api_key" {
				creds.OpenAI.APIKey = value
			}
		}
	}
	return creds
}

// shred overwrites a file with random bytes before removing it.
func shred(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	noise := make([]byte, info.Size())
	if _, err := rand.Read(noise); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(noise); err != nil {
		f.Close()
		return err
	}
	f.Close()
	return os.Remove(path)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
