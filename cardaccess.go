// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package emrtd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/moov-io/bertlv"
)

// oidPACEPrefix is the id-PACE arc (bsi-de protocols smartcard pace).
const oidPACEPrefix = "0.4.0.127.0.7.2.2.4"

// PACEInfo is one SecurityInfo entry advertising a PACE protocol the document
// supports.
type PACEInfo struct {
	// Protocol is the dotted OID of the key agreement / cipher combination.
	Protocol string
	// Version is the protocol version, 2 for every deployed document.
	Version int
	// ParameterID selects the standardized domain parameters; -1 when the
	// entry carries none.
	ParameterID int
}

// Name returns a readable protocol name for known OIDs, or the raw OID.
func (p PACEInfo) Name() string {
	if n, ok := paceProtocolNames[p.Protocol]; ok {
		return n
	}
	return p.Protocol
}

// CardAccess is the parsed EF.CardAccess metadata read from the tag before
// the handshake. It is handed to the PACE collaborator unmodified.
type CardAccess struct {
	// Raw is the DER-encoded file content as read from the tag.
	Raw []byte
	// PACEInfos lists the advertised PACE protocols, in file order.
	PACEInfos []PACEInfo
}

// PreferredPACE returns the first advertised PACE entry. Documents list a
// single entry in practice.
func (ca *CardAccess) PreferredPACE() (PACEInfo, bool) {
	if len(ca.PACEInfos) == 0 {
		return PACEInfo{}, false
	}
	return ca.PACEInfos[0], true
}

// CardAccessParser turns raw EF.CardAccess bytes into access metadata.
// ParseCardAccess is the default; tests substitute their own.
type CardAccessParser interface {
	Parse(raw []byte) (*CardAccess, error)
}

// CardAccessParserFunc adapts a function to the CardAccessParser interface.
type CardAccessParserFunc func(raw []byte) (*CardAccess, error)

// Parse calls f.
func (f CardAccessParserFunc) Parse(raw []byte) (*CardAccess, error) {
	return f(raw)
}

// ParseCardAccess decodes the DER SET OF SecurityInfo structure and extracts
// every PACEInfo entry. Entries under unrelated arcs (chip authentication,
// terminal authentication) are ignored; a file advertising no PACE protocol
// at all is rejected.
func ParseCardAccess(raw []byte) (*CardAccess, error) {
	tlvs, err := bertlv.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCardAccessInvalid, err)
	}
	if len(tlvs) == 0 || tlvs[0].Tag != "31" {
		return nil, fmt.Errorf("%w: missing SecurityInfos set", ErrCardAccessInvalid)
	}

	access := &CardAccess{Raw: raw}
	for _, info := range tlvs[0].TLVs {
		if info.Tag != "30" {
			continue
		}
		pace, ok, err := parseSecurityInfo(info)
		if err != nil {
			return nil, err
		}
		if ok {
			access.PACEInfos = append(access.PACEInfos, pace)
		}
	}

	if len(access.PACEInfos) == 0 {
		return nil, fmt.Errorf("%w: no PACE protocol advertised", ErrCardAccessInvalid)
	}
	return access, nil
}

// parseSecurityInfo reads one SEQUENCE { OID, INTEGER version, INTEGER
// parameterId OPTIONAL }. The bool result is false for non-PACE entries.
func parseSecurityInfo(info bertlv.TLV) (PACEInfo, bool, error) {
	if len(info.TLVs) < 2 || info.TLVs[0].Tag != "06" {
		return PACEInfo{}, false, fmt.Errorf("%w: malformed SecurityInfo", ErrCardAccessInvalid)
	}

	oid := decodeOID(info.TLVs[0].Value)
	if !strings.HasPrefix(oid, oidPACEPrefix+".") {
		return PACEInfo{}, false, nil
	}

	pace := PACEInfo{Protocol: oid, ParameterID: -1}
	if info.TLVs[1].Tag != "02" {
		return PACEInfo{}, false, fmt.Errorf("%w: PACEInfo missing version", ErrCardAccessInvalid)
	}
	pace.Version = decodeInt(info.TLVs[1].Value)

	if len(info.TLVs) >= 3 && info.TLVs[2].Tag == "02" {
		pace.ParameterID = decodeInt(info.TLVs[2].Value)
	}
	return pace, true, nil
}

// decodeOID renders DER object identifier content bytes in dotted form.
func decodeOID(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var parts []string
	parts = append(parts, strconv.Itoa(int(b[0])/40), strconv.Itoa(int(b[0])%40))
	v := 0
	for _, c := range b[1:] {
		v = v<<7 | int(c&0x7F)
		if c&0x80 == 0 {
			parts = append(parts, strconv.Itoa(v))
			v = 0
		}
	}
	return strings.Join(parts, ".")
}

// decodeInt reads a small DER INTEGER. PACE versions and parameter ids fit a
// machine int comfortably.
func decodeInt(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

// paceProtocolNames maps the deployed PACE OIDs to their ICAO names.
var paceProtocolNames = map[string]string{
	oidPACEPrefix + ".1.2": "PACE-DH-GM-AES-CBC-CMAC-128",
	oidPACEPrefix + ".1.3": "PACE-DH-GM-AES-CBC-CMAC-192",
	oidPACEPrefix + ".1.4": "PACE-DH-GM-AES-CBC-CMAC-256",
	oidPACEPrefix + ".2.2": "PACE-ECDH-GM-AES-CBC-CMAC-128",
	oidPACEPrefix + ".2.3": "PACE-ECDH-GM-AES-CBC-CMAC-192",
	oidPACEPrefix + ".2.4": "PACE-ECDH-GM-AES-CBC-CMAC-256",
	oidPACEPrefix + ".6.2": "PACE-ECDH-IM-AES-CBC-CMAC-128",
	oidPACEPrefix + ".6.3": "PACE-ECDH-IM-AES-CBC-CMAC-192",
	oidPACEPrefix + ".6.4": "PACE-ECDH-IM-AES-CBC-CMAC-256",
}
