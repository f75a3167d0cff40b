package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Artifact is the part of a hardhat compile artifact the client reads.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
}

// LoadArtifact reads the contract interface published by the deployment
// pipeline. Both hardhat artifacts and bare ABI arrays are accepted.
func LoadArtifact(path string) (*abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("parse artifact %s: %v", path, err)
	}
	return parsed, nil
}

func ParseArtifact(data []byte) (*abi.ABI, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))

	abiJSON := data
	if !bytes.HasPrefix(data, []byte("[")) {
		artifact := &Artifact{}
		if err := json.Unmarshal(data, artifact); err != nil {
			return nil, err
		}
		if len(artifact.ABI) == 0 {
			return nil, fmt.Errorf("artifact %q has no abi", artifact.ContractName)
		}
		abiJSON = artifact.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
