// Copyright 2025 Poiesic Systems
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


package lexindex

import "errors"

var (
	// ErrIndexNotBuilt indicates a query or stats request arrived before
	// any index was built or loaded.
	ErrIndexNotBuilt = errors.New("index has not been built")

	// ErrNoDocuments indicates a build or add produced nothing to index,
	// either because the input batch was empty or every document failed.
	ErrNoDocuments = errors.New("no documents to index")
)
