package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SignatureKind различает варианты подписи операции
type SignatureKind uint8

const (
	// SignatureNone нулевое значение: подпись отсутствует и никогда не проходит проверку
	SignatureNone SignatureKind = iota
	// SignatureValue подпись с вычисленным значением
	SignatureValue
	// SignatureDisabled подписание отключено конфигурацией
	SignatureDisabled
)

// String returns the wire name of the kind.
func (k SignatureKind) String() string {
	switch k {
	case SignatureValue:
		return "value"
	case SignatureDisabled:
		return "disabled"
	default:
		return "none"
	}
}

// Signature is a tagged variant: either Disabled or Value(bytes).
type Signature struct {
	Value []byte
	Kind  SignatureKind
}

// ValueSignature создает подпись с вычисленным значением
func ValueSignature(value []byte) Signature {
	return Signature{Kind: SignatureValue, Value: value}
}

// DisabledSignature создает маркер отключенного подписания
func DisabledSignature() Signature {
	return Signature{Kind: SignatureDisabled}
}

type signatureJSON struct {
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
}

// MarshalJSON кодирует подпись как {"kind":"value","value":"<hex>"} или {"kind":"disabled"}
func (s Signature) MarshalJSON() ([]byte, error) {
	out := signatureJSON{Kind: s.Kind.String()}
	if s.Kind == SignatureValue {
		out.Value = hex.EncodeToString(s.Value)
	}
	return json.Marshal(out)
}

// UnmarshalJSON декодирует подпись из формата MarshalJSON
func (s *Signature) UnmarshalJSON(data []byte) error {
	var in signatureJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}

	switch in.Kind {
	case "value":
		value, err := hex.DecodeString(in.Value)
		if err != nil {
			return fmt.Errorf("failed to decode signature value: %w", err)
		}
		*s = ValueSignature(value)
	case "disabled":
		*s = DisabledSignature()
	case "none", "":
		*s = Signature{}
	default:
		return fmt.Errorf("unknown signature kind %q", in.Kind)
	}

	return nil
}
