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
	"context"
	"fmt"
)

// maxElementaryFileSize caps reads of unauthenticated elementary files.
// EF.CardAccess is tens of bytes in practice.
const maxElementaryFileSize = 4096

// ReadCardAccessFile selects EF.CardAccess and reads its full content in
// chunks over a plain transceive link. Reader backends share this for their
// ReadCardAccess implementation.
func ReadCardAccessFile(ctx context.Context, transceive TransceiveFunc) ([]byte, error) {
	sel, err := exchangePlain(ctx, transceive, NewSelectByFileID(CardAccessFileID))
	if err != nil {
		return nil, err
	}
	if !sel.SW.IsSuccess() {
		return nil, fmt.Errorf("%w: select rejected with %s", ErrCardAccessInvalid, sel.SW)
	}

	var content []byte
	for offset := 0; offset < maxElementaryFileSize; {
		resp, err := exchangePlain(ctx, transceive, NewReadBinary(uint16(offset), DefaultMaxReadAmount))
		if err != nil {
			return nil, err
		}
		switch {
		case resp.SW.IsSuccess() || resp.SW == SWEOFReached:
			content = append(content, resp.Data...)
			if len(resp.Data) < DefaultMaxReadAmount || resp.SW == SWEOFReached {
				return content, nil
			}
			offset += len(resp.Data)
		case resp.SW.IsWrongLength():
			// Retry with the Le the card asked for.
			le := int(resp.SW.SW2())
			short, err := exchangePlain(ctx, transceive, NewReadBinary(uint16(offset), le))
			if err != nil {
				return nil, err
			}
			if !short.SW.IsSuccess() && short.SW != SWEOFReached {
				return nil, fmt.Errorf("%w: read rejected with %s", ErrCardAccessInvalid, short.SW)
			}
			return append(content, short.Data...), nil
		case offset == 0:
			return nil, fmt.Errorf("%w: read rejected with %s", ErrCardAccessInvalid, resp.SW)
		default:
			return content, nil
		}
	}
	return content, nil
}

// exchangePlain encodes, transceives and parses one plain command.
func exchangePlain(ctx context.Context, transceive TransceiveFunc, cmd *CommandAPDU) (*ResponseAPDU, error) {
	raw, err := cmd.Bytes()
	if err != nil {
		return nil, err
	}
	respRaw, err := transceive(ctx, raw)
	if err != nil {
		return nil, err
	}
	return ParseResponseAPDU(respRaw)
}
