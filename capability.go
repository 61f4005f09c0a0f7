package morph

import (
	"fmt"
	"time"
)

// Names of the converters registered on every engine.
// Use these in tags: `morph.convert:"mask.email"`
const (
	// ConvertUnixMilli converts between int64 milliseconds and time.Time.
	ConvertUnixMilli = "time.unixmilli"

	// ConvertUnix converts between int64 seconds and time.Time.
	ConvertUnix = "time.unix"

	// ConvertRFC3339 converts between RFC 3339 strings and time.Time.
	ConvertRFC3339 = "time.rfc3339"

	// HashSHA256 hashes to a hex-encoded SHA-256 digest.
	// Use for fingerprinting/identification, NOT for passwords.
	HashSHA256 = "hash.sha256"

	// HashSHA512 hashes to a hex-encoded SHA-512 digest.
	HashSHA512 = "hash.sha512"

	// HashBcrypt hashes with bcrypt at the default cost.
	HashBcrypt = "hash.bcrypt"

	// HashArgon2 hashes with Argon2id using DefaultArgon2Params.
	HashArgon2 = "hash.argon2"

	MaskEmail = "mask.email" // alice@example.com -> a***@example.com
	MaskCard  = "mask.card"  // 4111111111111111 -> ************1111
	MaskPhone = "mask.phone" // (555) 123-4567 -> (***) ***-4567
	MaskSSN   = "mask.ssn"   // 123-45-6789 -> ***-**-6789
	MaskName  = "mask.name"  // John Smith -> J*** S****
	MaskIP    = "mask.ip"    // 192.168.1.100 -> 192.168.xxx.xxx

	// EncryptAES seals with AES-GCM and encodes as base64.
	// Registered only when the engine has a key.
	EncryptAES = "encrypt.aes"

	// DecryptAES reverses EncryptAES.
	DecryptAES = "decrypt.aes"
)

// builtinConverters returns the converters registered on a new engine.
// The AES pair is included only when key is non-empty.
func builtinConverters(key []byte) (map[string]Converter, error) {
	converters := map[string]Converter{
		ConvertUnixMilli: unixConverter(time.UnixMilli, time.Time.UnixMilli),
		ConvertUnix:      unixConverter(func(s int64) time.Time { return time.Unix(s, 0) }, time.Time.Unix),
		ConvertRFC3339:   ConverterFunc(convertRFC3339),

		HashSHA256: HashConverter(SHA256),
		HashSHA512: HashConverter(SHA512),
		HashBcrypt: HashConverter(Bcrypt(BcryptDefaultCost)),
		HashArgon2: HashConverter(Argon2(DefaultArgon2Params())),

		MaskEmail: MaskConverter(MaskEmailAddress),
		MaskCard:  MaskConverter(MaskCardNumber),
		MaskPhone: MaskConverter(MaskPhoneNumber),
		MaskSSN:   MaskConverter(MaskSocialSecurity),
		MaskName:  MaskConverter(MaskPersonName),
		MaskIP:    MaskConverter(MaskIPAddress),
	}

	if len(key) > 0 {
		enc, err := AES(key)
		if err != nil {
			return nil, err
		}
		converters[EncryptAES] = EncryptConverter(enc)
		converters[DecryptAES] = DecryptConverter(enc)
	}
	return converters, nil
}

// unixConverter converts in both directions between an integer epoch and time.Time.
func unixConverter(toTime func(int64) time.Time, fromTime func(time.Time) int64) Converter {
	return ConverterFunc(func(v any) (any, error) {
		switch x := v.(type) {
		case nil:
			return nil, nil
		case int64:
			return toTime(x).UTC(), nil
		case *int64:
			if x == nil {
				return nil, nil
			}
			return toTime(*x).UTC(), nil
		case int:
			return toTime(int64(x)).UTC(), nil
		case time.Time:
			return fromTime(x), nil
		case *time.Time:
			if x == nil {
				return nil, nil
			}
			return fromTime(*x), nil
		}
		return nil, fmt.Errorf("epoch conversion does not accept %T", v)
	})
}

func convertRFC3339(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if x == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339Nano, x)
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.Format(time.RFC3339Nano), nil
	}
	return nil, fmt.Errorf("rfc3339 conversion does not accept %T", v)
}
